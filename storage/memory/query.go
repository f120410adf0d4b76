package memory

import "strings"

// keywordQuery is a minimal websearch-style query: bare terms are ANDed,
// "quoted phrases" must appear verbatim, and -terms must be absent.
// OR between two terms makes either sufficient.
type keywordQuery struct {
	phrases  []string
	required []string
	excluded []string
	orGroups [][]string
}

func parseQuery(raw string) *keywordQuery {
	q := &keywordQuery{}
	raw = strings.ToLower(raw)

	// Pull out quoted phrases first.
	for {
		open := strings.Index(raw, `"`)
		if open < 0 {
			break
		}
		rest := raw[open+1:]
		closeIdx := strings.Index(rest, `"`)
		if closeIdx < 0 {
			raw = strings.Replace(raw, `"`, "", 1)
			continue
		}
		if phrase := strings.TrimSpace(rest[:closeIdx]); phrase != "" {
			q.phrases = append(q.phrases, phrase)
		}
		raw = raw[:open] + " " + rest[closeIdx+1:]
	}

	tokens := strings.Fields(raw)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "or" || tok == "and":
			continue
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			q.excluded = append(q.excluded, tok[1:])
		case i+2 < len(tokens) && tokens[i+1] == "or":
			group := []string{tok}
			for i+2 < len(tokens) && tokens[i+1] == "or" {
				group = append(group, tokens[i+2])
				i += 2
			}
			q.orGroups = append(q.orGroups, group)
		default:
			q.required = append(q.required, tok)
		}
	}
	return q
}

// match scores a lowercased document against the query. Zero means no
// match. Highlights are the matched phrases and terms.
func (q *keywordQuery) match(document string) (float64, []string) {
	var highlights []string
	matched := 0
	total := len(q.phrases) + len(q.required) + len(q.orGroups)
	if total == 0 {
		return 0, nil
	}

	for _, phrase := range q.phrases {
		if !strings.Contains(document, phrase) {
			return 0, nil
		}
		matched++
		highlights = append(highlights, phrase)
	}
	for _, term := range q.required {
		if !strings.Contains(document, term) {
			return 0, nil
		}
		matched++
		highlights = append(highlights, term)
	}
	for _, group := range q.orGroups {
		hit := false
		for _, term := range group {
			if strings.Contains(document, term) {
				hit = true
				highlights = append(highlights, term)
				break
			}
		}
		if !hit {
			return 0, nil
		}
		matched++
	}
	for _, term := range q.excluded {
		if strings.Contains(document, term) {
			return 0, nil
		}
	}

	return float64(matched) / float64(total), highlights
}
