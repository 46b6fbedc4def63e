// Package order holds the listing order shared by every store backend.
package order

import (
	"sort"

	"github.com/basicrecords/moodjournal/internal/domain"
)

// NewestFirst sorts entries by createdAt descending, breaking ties by id,
// and truncates to limit when limit is positive. Entries without a valid
// createdAt sort last.
func NewestFirst(entries []domain.Entry, limit int) []domain.Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].CreatedAt, entries[j].CreatedAt
		if a.Valid() != b.Valid() {
			return a.Valid()
		}
		if !a.Equal(b.Time) {
			return a.After(b.Time)
		}
		return entries[i].ID < entries[j].ID
	})
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
