// Package mood holds the pure transformations over journal entries: the
// three-tier score classifier, the weekday aggregator and the criteria
// filter. Nothing here touches storage or shared state; callers pass a
// snapshot in and get a fresh value back, so recomputing after every change
// is always safe.
package mood

import "github.com/basicrecords/moodjournal/internal/domain"

const (
	// MediumFloor is the first score classified as Medium.
	MediumFloor = 26
	// HighFloor is the first score classified as High.
	HighFloor = 51
)

// Classify maps a score onto Low, Medium or High.
//
// Scores outside [0,100] are not validated and fall into the nearest tier.
// Fractional scores between the integer thresholds (e.g. 25.5, 50.5) belong
// to the lower tier since the thresholds are inclusive lower bounds.
func Classify(score float64) domain.Level {
	switch {
	case score >= HighFloor:
		return domain.LevelHigh
	case score >= MediumFloor:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}
