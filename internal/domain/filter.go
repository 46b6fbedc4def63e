package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is the coarse three-tier classification of a mood score.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Levels lists every level from lowest to highest.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

// ParseLevel resolves a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", &ValidationError{Field: "level", Reason: fmt.Sprintf("unknown mood level %q", s)}
}

// UnmarshalJSON accepts level names in any case.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Criterion selects entries whose score for Type falls into Level.
type Criterion struct {
	Type  string `json:"type"`
	Level Level  `json:"level"`
}

// String renders the criterion as "type:Level".
func (c Criterion) String() string {
	return c.Type + ":" + string(c.Level)
}

// ParseCriterion parses the "type:Level" form used in query strings.
func ParseCriterion(s string) (Criterion, error) {
	typ, lvl, ok := strings.Cut(s, ":")
	typ = strings.TrimSpace(typ)
	if !ok || typ == "" {
		return Criterion{}, &ValidationError{Field: "mood", Reason: fmt.Sprintf("criterion %q must look like type:Level", s)}
	}
	level, err := ParseLevel(lvl)
	if err != nil {
		return Criterion{}, err
	}
	return Criterion{Type: typ, Level: level}, nil
}

// CriteriaSet is an insertion-ordered set of criteria without duplicates.
// The zero value is an empty set ready to use.
type CriteriaSet struct {
	items []Criterion
}

// NewCriteriaSet builds a set from cs, dropping duplicates.
func NewCriteriaSet(cs ...Criterion) *CriteriaSet {
	s := &CriteriaSet{}
	for _, c := range cs {
		s.Add(c)
	}
	return s
}

// Add inserts c and reports whether it was not already present.
func (s *CriteriaSet) Add(c Criterion) bool {
	if s.Contains(c) {
		return false
	}
	s.items = append(s.items, c)
	return true
}

// Remove deletes the criterion with exactly c's type and level.
func (s *CriteriaSet) Remove(c Criterion) bool {
	for i, existing := range s.items {
		if existing == c {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the set.
func (s *CriteriaSet) Clear() {
	s.items = nil
}

// Contains reports whether c is in the set.
func (s *CriteriaSet) Contains(c Criterion) bool {
	if s == nil {
		return false
	}
	for _, existing := range s.items {
		if existing == c {
			return true
		}
	}
	return false
}

// Len returns the number of criteria.
func (s *CriteriaSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the criteria in insertion order.
func (s *CriteriaSet) Items() []Criterion {
	if s == nil {
		return nil
	}
	return append([]Criterion(nil), s.items...)
}

// MarshalJSON encodes the set as an array in insertion order.
func (s *CriteriaSet) MarshalJSON() ([]byte, error) {
	items := s.Items()
	if items == nil {
		items = []Criterion{}
	}
	return json.Marshal(items)
}

// UnmarshalJSON decodes an array, dropping duplicates.
func (s *CriteriaSet) UnmarshalJSON(data []byte) error {
	var items []Criterion
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.Clear()
	for _, c := range items {
		s.Add(c)
	}
	return nil
}
