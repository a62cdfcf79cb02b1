package ingress

import "regexp"

// suspectPatterns implements spec §4.1's payload hygiene deep scan: script
// tags, SQL comment sequences, and shell meta-characters inside string
// fields. These are heuristic tripwires, not a sanitizer — a match rejects
// the whole payload rather than attempting to clean it.
var suspectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[\s>]`),
	regexp.MustCompile(`--\s*$`),
	regexp.MustCompile(`/\*.*\*/`),
	regexp.MustCompile("[;&|`$]"),
}

// scanSuspect reports whether any string value in the payload trips a
// suspect pattern.
func scanSuspect(values []string) bool {
	for _, v := range values {
		for _, p := range suspectPatterns {
			if p.MatchString(v) {
				return true
			}
		}
	}
	return false
}

// stringFields walks a decoded JSON value, collecting every string leaf so
// the hygiene scan can inspect nested objects/arrays, not just top-level
// fields.
func stringFields(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			for _, vv := range t {
				walk(vv)
			}
		case []any:
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	walk(v)
	return out
}
