package search

import "regexp"

// citationPattern matches bracketed entry-id markers like [#PLC-1042].
var citationPattern = regexp.MustCompile(`\[#([^\]\s]+)\]`)

// ExtractCitations scans an answer for bracketed entry-id markers and
// returns the ids de-duplicated in first-seen order. Extraction is
// idempotent: running it over its own output yields the same ids.
func ExtractCitations(answer string) []string {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	citations := make([]string, 0, len(matches))
	for _, match := range matches {
		id := match[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		citations = append(citations, id)
	}
	return citations
}
