// Package expand implements the recipe template language: character-by-character
// scanning of "$var" / "$$" / "$in" / "$out" references. It is a pure string
// algorithm with no knowledge of the graph or recipe types that own the
// templates being expanded.
package expand

import (
	"strings"

	"go.trai.ch/zerr"
)

// ErrEmptyVariableName is returned when a "$" is not followed by a character
// that can start a variable name.
var ErrEmptyVariableName = zerr.New("empty variable name")

// Resolver looks up a binding value by name. A false ok means the name is
// undefined and expands to the empty string.
type Resolver func(name string) (value string, ok bool)

// isNameStart reports whether r can start a variable name.
func isNameStart(r byte) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// isNameCont reports whether r can continue a variable name.
func isNameCont(r byte) bool {
	return isNameStart(r) || (r >= '0' && r <= '9')
}

// Template expands tmpl, substituting inVal for "$in", outVal for "$out",
// "$" for "$$", and resolve(name) for any other "$name" reference. Missing
// bindings (resolve returns ok=false) expand to the empty string. An empty
// variable name (a "$" not followed by a name-start character) is a fatal
// error naming the offending template.
func Template(tmpl, inVal, outVal string, resolve Resolver) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}

		// c == '$'
		if i+1 >= len(tmpl) || !isDollarFollower(tmpl[i+1]) {
			return "", zerr.With(ErrEmptyVariableName, "template", tmpl)
		}

		next := tmpl[i+1]
		if next == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}

		if !isNameStart(next) {
			return "", zerr.With(ErrEmptyVariableName, "template", tmpl)
		}

		j := i + 1
		for j < len(tmpl) && isNameCont(tmpl[j]) {
			j++
		}
		name := tmpl[i+1 : j]

		switch name {
		case "in":
			b.WriteString(inVal)
		case "out":
			b.WriteString(outVal)
		default:
			if v, ok := resolve(name); ok {
				b.WriteString(v)
			}
		}
		i = j
	}

	return b.String(), nil
}

// isDollarFollower reports whether c may legally follow a "$": either the
// start of a variable name, or another "$" for the literal-dollar escape.
func isDollarFollower(c byte) bool {
	return c == '$' || isNameStart(c)
}

// Escape prepares a path for inclusion in a $in/$out expansion by escaping
// spaces and double quotes.
func Escape(path string) string {
	replacer := strings.NewReplacer(" ", `\ `, `"`, `\"`)
	return replacer.Replace(path)
}

// JoinEscaped escapes and joins paths with single spaces, as required by the
// $in and $out built-ins.
func JoinEscaped(paths []string) string {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = Escape(p)
	}
	return strings.Join(escaped, " ")
}
