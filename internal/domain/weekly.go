package domain

import "time"

// Weekdays lists the weekday names in calendar order starting on Sunday.
var Weekdays = []string{
	time.Sunday.String(),
	time.Monday.String(),
	time.Tuesday.String(),
	time.Wednesday.String(),
	time.Thursday.String(),
	time.Friday.String(),
	time.Saturday.String(),
}

// WeeklyAggregate maps a weekday name to the average score per mood dimension.
// Weekdays without contributing entries are absent.
type WeeklyAggregate map[string]map[string]float64
