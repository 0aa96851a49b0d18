// Package recipe implements the text (de)serialization of a domain.Recipe:
// a line-oriented format of "rule"/"build" blocks terminated by a blank
// line, plus top-level "binding" and "cacheDir" directives.
package recipe

import (
	"errors"
	"strconv"
	"strings"

	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/zerr"
)

// Parse parses recipe text into a domain.Recipe. filename is used only to
// annotate error messages with a source location.
func Parse(text, filename string) (*domain.Recipe, error) {
	r := &domain.Recipe{Bindings: map[string]string{}}
	lines := strings.Split(text, "\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimRight(lines[i], "\r")

		switch {
		case line == "":
			i++
		case isIndented(line):
			return nil, parseErr(filename, i+1, "unexpected indented line outside a block")
		case strings.HasPrefix(line, "rule "):
			var rule domain.Rule
			var err error
			rule, i, err = parseRule(lines, i, filename)
			if err != nil {
				return nil, err
			}
			r.Rules = append(r.Rules, rule)
		case strings.HasPrefix(line, "build "):
			var build domain.Build
			var err error
			build, i, err = parseBuild(lines, i, filename)
			if err != nil {
				return nil, err
			}
			r.Builds = append(r.Builds, build)
		case strings.HasPrefix(line, "binding "):
			key, val, err := parseBindingExpr(strings.TrimPrefix(line, "binding "))
			if err != nil {
				return nil, parseErr(filename, i+1, err.Error())
			}
			r.Bindings[key] = val
			i++
		case strings.HasPrefix(line, "cacheDir "):
			r.CacheDir = strings.TrimSpace(strings.TrimPrefix(line, "cacheDir "))
			i++
		default:
			return nil, parseErr(filename, i+1, "unexpected line: "+line)
		}
	}

	return r, nil
}

// parseRule consumes a "rule <name>" header at lines[start] and its
// indented body, returning the parsed Rule and the index of the first line
// after the block.
func parseRule(lines []string, start int, filename string) (domain.Rule, int, error) {
	header := strings.TrimSpace(lines[start])
	rule := domain.Rule{
		Name: strings.TrimSpace(strings.TrimPrefix(header, "rule")),
		Jobs: 1,
	}

	i := start + 1
	for i < len(lines) {
		line := strings.TrimRight(lines[i], "\r")
		if line == "" {
			i++
			return rule, i, nil
		}
		if !isIndented(line) {
			return rule, i, parseErr(filename, i+1, "missing blank line terminating rule block")
		}

		key, val, err := splitKV(strings.TrimSpace(line))
		if err != nil {
			return rule, i, parseErr(filename, i+1, err.Error())
		}

		switch key {
		case "description":
			rule.Description = val
		case "command":
			rule.Command = val
		case "depfile":
			rule.Depfile = val
		case "deps":
			rule.Deps = domain.DepsFormat(val)
		case "jobs":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return rule, i, parseErr(filename, i+1, "bad integer for jobs: "+val)
			}
			rule.Jobs = n
		default:
			return rule, i, parseErr(filename, i+1, "unknown key in rule block: "+key)
		}
		i++
	}

	return rule, i, nil
}

// parseBuild consumes a "build <rule-name>" header at lines[start] and its
// indented body.
func parseBuild(lines []string, start int, filename string) (domain.Build, int, error) {
	header := strings.TrimSpace(lines[start])
	build := domain.Build{
		RuleName: strings.TrimSpace(strings.TrimPrefix(header, "build")),
	}

	i := start + 1
	for i < len(lines) {
		line := strings.TrimRight(lines[i], "\r")
		if line == "" {
			i++
			return build, i, nil
		}
		if !isIndented(line) {
			return build, i, parseErr(filename, i+1, "missing blank line terminating build block")
		}

		key, val, err := splitKV(strings.TrimSpace(line))
		if err != nil {
			return build, i, parseErr(filename, i+1, err.Error())
		}

		switch key {
		case "input":
			build.Inputs = append(build.Inputs, val)
		case "implicitInput":
			build.ImplicitInputs = append(build.ImplicitInputs, val)
		case "orderOnlyInput":
			build.OrderOnlyInputs = append(build.OrderOnlyInputs, val)
		case "output":
			build.Outputs = append(build.Outputs, val)
		case "implicitOutput":
			build.ImplicitOutputs = append(build.ImplicitOutputs, val)
		case "binding":
			bk, bv, err := parseBindingExpr(val)
			if err != nil {
				return build, i, parseErr(filename, i+1, err.Error())
			}
			if build.Bindings == nil {
				build.Bindings = map[string]string{}
			}
			build.Bindings[bk] = bv
		case "jobs":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return build, i, parseErr(filename, i+1, "bad integer for jobs: "+val)
			}
			build.Jobs = n
		default:
			return build, i, parseErr(filename, i+1, "unknown key in build block: "+key)
		}
		i++
	}

	return build, i, nil
}

// isIndented reports whether line begins with any non-empty whitespace run.
func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

// splitKV splits a body line into its key and the remainder of the line as
// its value, on the first run of whitespace.
func splitKV(s string) (key, val string, err error) {
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return "", "", errors.New("missing value for key: " + s)
	}
	return s[:idx], strings.TrimSpace(s[idx+1:]), nil
}

// parseBindingExpr parses "<key> = <value>" as used by both top-level and
// build-local binding lines.
func parseBindingExpr(s string) (key, val string, err error) {
	idx := strings.Index(s, "=")
	if idx < 0 {
		return "", "", errors.New("malformed binding: " + s)
	}
	key = strings.TrimSpace(s[:idx])
	val = strings.TrimSpace(s[idx+1:])
	if key == "" {
		return "", "", errors.New("malformed binding: " + s)
	}
	return key, val, nil
}

func parseErr(filename string, line int, msg string) error {
	err := zerr.Wrap(domain.ErrRecipeParse, msg)
	err = zerr.With(err, "file", filename)
	return zerr.With(err, "line", line)
}
