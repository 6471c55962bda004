package library

import (
	"regexp"
	"sort"
)

// variablePattern matches bracketed placeholders like [topic] or [target_audience].
var variablePattern = regexp.MustCompile(`\[([a-zA-Z_][a-zA-Z0-9_]*)\]`)

// DetectVariables extracts placeholder names from content.
// For example, "Write about [topic] for [audience]" returns audience and topic.
func DetectVariables(content string) []Variable {
	matches := variablePattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool)
	var names []string

	for _, match := range matches {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}

	// Sort for consistent ordering
	sort.Strings(names)

	vars := make([]Variable, 0, len(names))
	for _, n := range names {
		vars = append(vars, Variable{Name: n})
	}
	return vars
}
