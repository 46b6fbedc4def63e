package mood

import (
	"math"
	"sort"

	"github.com/basicrecords/moodjournal/internal/domain"
)

// DimensionAverage is one rendered mood average.
type DimensionAverage struct {
	Mood    string  `json:"mood"`
	Average float64 `json:"average"`
	Level   string  `json:"level"`
}

// DaySummary is the card rendered for one weekday.
type DaySummary struct {
	Weekday string             `json:"weekday"`
	Moods   []DimensionAverage `json:"moods"`
}

// Summarize orders agg Sunday through Saturday with dimensions sorted by name,
// rounding averages to precision decimal places. A negative precision keeps
// the raw values.
func Summarize(agg domain.WeeklyAggregate, precision int) []DaySummary {
	out := make([]DaySummary, 0, len(agg))
	for _, day := range domain.Weekdays {
		dims, ok := agg[day]
		if !ok {
			continue
		}
		keys := make([]string, 0, len(dims))
		for k := range dims {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		summary := DaySummary{Weekday: day, Moods: make([]DimensionAverage, 0, len(keys))}
		for _, k := range keys {
			avg := dims[k]
			summary.Moods = append(summary.Moods, DimensionAverage{
				Mood:    k,
				Average: Round(avg, precision),
				Level:   string(Classify(avg)),
			})
		}
		out = append(out, summary)
	}
	return out
}

// Round rounds v half away from zero to precision decimal places.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}
