package recipe

import (
	"sort"
	"strconv"
	"strings"

	"go.trai.ch/cook/internal/core/domain"
)

// Serializer implements ports.RecipeSerializer by rendering the §4.1 text form.
type Serializer struct{}

// NewSerializer creates a new Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Serialize renders recipe as recipe text.
func (s *Serializer) Serialize(recipe *domain.Recipe) ([]byte, error) {
	return Serialize(recipe)
}

// Serialize renders r in the line-oriented text form described by §4.1. The
// output re-parses to a structurally identical Recipe.
func Serialize(r *domain.Recipe) ([]byte, error) {
	var b strings.Builder

	for _, rule := range r.Rules {
		b.WriteString("rule " + rule.Name + "\n")
		if rule.Description != "" {
			b.WriteString("\tdescription " + rule.Description + "\n")
		}
		b.WriteString("\tcommand " + rule.Command + "\n")
		if rule.Depfile != "" {
			b.WriteString("\tdepfile " + rule.Depfile + "\n")
		}
		if rule.Deps != "" {
			b.WriteString("\tdeps " + string(rule.Deps) + "\n")
		}
		b.WriteString("\tjobs " + strconv.Itoa(jobsOrDefault(rule.Jobs)) + "\n")
		b.WriteString("\n")
	}

	for _, build := range r.Builds {
		b.WriteString("build " + build.RuleName + "\n")
		writeList(&b, "input", build.Inputs)
		writeList(&b, "implicitInput", build.ImplicitInputs)
		writeList(&b, "orderOnlyInput", build.OrderOnlyInputs)
		writeList(&b, "output", build.Outputs)
		writeList(&b, "implicitOutput", build.ImplicitOutputs)
		for _, k := range sortedKeys(build.Bindings) {
			b.WriteString("\tbinding " + k + " = " + build.Bindings[k] + "\n")
		}
		if build.Jobs != 0 {
			b.WriteString("\tjobs " + strconv.Itoa(build.Jobs) + "\n")
		}
		b.WriteString("\n")
	}

	for _, k := range sortedKeys(r.Bindings) {
		b.WriteString("binding " + k + " = " + r.Bindings[k] + "\n")
	}
	if r.CacheDir != "" {
		b.WriteString("cacheDir " + r.CacheDir + "\n")
	}

	return []byte(b.String()), nil
}

func jobsOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func writeList(b *strings.Builder, key string, vals []string) {
	for _, v := range vals {
		b.WriteString("\t" + key + " " + v + "\n")
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
