package mood

import "github.com/basicrecords/moodjournal/internal/domain"

// Matches reports whether entry satisfies at least one criterion.
// An empty or nil set matches every entry.
func Matches(entry domain.Entry, criteria *domain.CriteriaSet) bool {
	if criteria.Len() == 0 {
		return true
	}
	return matchesAny(entry, criteria.Items())
}

// Filter returns the entries that match criteria in their original order.
// The input slice is never modified; the result is always a new slice.
func Filter(entries []domain.Entry, criteria *domain.CriteriaSet) []domain.Entry {
	out := make([]domain.Entry, 0, len(entries))
	if criteria.Len() == 0 {
		return append(out, entries...)
	}
	items := criteria.Items()
	for _, entry := range entries {
		if matchesAny(entry, items) {
			out = append(out, entry)
		}
	}
	return out
}

func matchesAny(entry domain.Entry, items []domain.Criterion) bool {
	for _, c := range items {
		score, ok := entry.Mood.Score(c.Type)
		if ok && Classify(score) == c.Level {
			return true
		}
	}
	return false
}
