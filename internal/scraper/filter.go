package scraper

import "strings"

// Keywords holds the lowercased match terms. The zero value matches nothing;
// an empty set is rejected during config validation, long before filtering.
type Keywords struct {
	terms []string
}

// NewKeywords lowercases and dedupes the configured terms.
func NewKeywords(terms []string) Keywords {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{})
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return Keywords{terms: out}
}

// Len reports the number of distinct terms.
func (k Keywords) Len() int {
	return len(k.terms)
}

// Matches reports whether the record's searchable text contains at least one
// keyword, case-insensitively. Pure: no I/O, no mutation.
func (k Keywords) Matches(record TopicRecord) bool {
	if len(k.terms) == 0 {
		return false
	}
	text := strings.ToLower(record.Title)
	if record.Snippet != "" {
		text += " " + strings.ToLower(record.Snippet)
	}
	for _, term := range k.terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
