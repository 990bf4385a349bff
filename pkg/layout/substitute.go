package layout

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{ name }} markers: letters, digits and
// underscores only, with whitespace tolerated inside the braces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Substitute replaces every {{ name }} placeholder in s with the
// stringified value of vars[name]. Placeholders whose name is absent
// from vars are left byte-for-byte intact, so unresolved markers stay
// visible in the output instead of silently vanishing. A nil value
// substitutes as the empty string.
func Substitute(s string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		// The pattern guarantees m is {{...}}, so stripping the braces
		// and trimming yields the bare name.
		name := strings.TrimSpace(m[2 : len(m)-2])
		v, ok := vars[name]
		if !ok {
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
