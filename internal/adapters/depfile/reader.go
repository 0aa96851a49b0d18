// Package depfile parses the GCC/Clang -MMD makefile-fragment subset:
// a single "<target>: <dep> <dep> …" rule, possibly continued across lines
// with a trailing backslash, with backslash escapes honored in dependency
// tokens.
package depfile

import (
	"os"
	"strings"

	"go.trai.ch/zerr"
)

// ErrMissingSeparator is returned when a depfile has no unescaped ':'.
var ErrMissingSeparator = zerr.New("depfile missing target separator")

// ErrTargetMismatch is returned when expectedTarget is supplied and does
// not match the depfile's declared target.
var ErrTargetMismatch = zerr.New("depfile target mismatch")

// Reader implements ports.DepfileReader by reading the file from disk.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read reads and parses the depfile at path.
func (r *Reader) Read(path, expectedTarget string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is produced by a trusted recipe
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read depfile")
	}
	return Parse(string(data), expectedTarget)
}

// Parse parses depfile text into an ordered, possibly duplicated, list of
// dependency paths. If expectedTarget is non-empty, the depfile's declared
// target must match it exactly.
func Parse(text, expectedTarget string) ([]string, error) {
	joined := joinContinuations(text)

	colon := findUnescapedColon(joined)
	if colon < 0 {
		return nil, zerr.With(ErrMissingSeparator, "content", text)
	}

	target := strings.TrimSpace(joined[:colon])
	if expectedTarget != "" && target != expectedTarget {
		return nil, zerr.With(zerr.With(ErrTargetMismatch, "expected", expectedTarget), "actual", target)
	}

	return tokenizeDeps(joined[colon+1:]), nil
}

// joinContinuations collapses a trailing-backslash line continuation into a
// single space, turning the fragment into one logical line.
func joinContinuations(text string) string {
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")
	return text
}

// findUnescapedColon returns the index of the first ':' not preceded by an
// unconsumed backslash, or -1 if there is none.
func findUnescapedColon(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

// tokenizeDeps splits s on whitespace, honoring "\ " -> " " and "\\" -> "\"
// escapes so dependency paths containing spaces survive intact.
func tokenizeDeps(s string) []string {
	var tokens []string
	var cur strings.Builder
	have := false

	flush := func() {
		if have {
			tokens = append(tokens, cur.String())
			cur.Reset()
			have = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
			have = true
		case isSpace(c):
			flush()
		default:
			cur.WriteByte(c)
			have = true
		}
	}
	flush()

	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
