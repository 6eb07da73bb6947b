package workflow

import "strings"

// InputPrefix marks references that resolve against the workflow input map
// rather than task results.
const InputPrefix = "workflow.input."

// IsReference reports whether a value is a {{...}} reference string
func IsReference(value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	return strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}")
}

// TrimReference strips the {{ }} delimiters and surrounding whitespace
func TrimReference(ref string) string {
	inner := strings.TrimPrefix(ref, "{{")
	inner = strings.TrimSuffix(inner, "}}")
	return strings.TrimSpace(inner)
}

// SplitReference splits a trimmed reference into its dotted parts
func SplitReference(inner string) []string {
	return strings.Split(inner, ".")
}
