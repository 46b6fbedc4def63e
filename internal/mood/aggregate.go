package mood

import (
	"time"

	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/domain"
)

// Skip reasons reported to the skip hook.
const (
	SkipInvalidTimestamp = "invalid_timestamp"
	SkipNonNumericScore  = "non_numeric_score"
)

// Stats summarizes what an aggregation pass consumed.
type Stats struct {
	Entries        int `json:"entries"`
	Contributing   int `json:"contributing"`
	SkippedEntries int `json:"skippedEntries"`
	SkippedScores  int `json:"skippedScores"`
}

// Aggregator groups entries by the weekday of their creation time and
// averages every mood dimension per weekday.
type Aggregator struct {
	logger   *zap.Logger
	location *time.Location
	onSkip   func(reason string)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger that receives skipped-entry warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLocation buckets entries by their weekday in loc instead of the
// zone carried by each timestamp.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) { a.location = loc }
}

// WithSkipHook registers fn to be called once per skipped entry or score.
func WithSkipHook(fn func(reason string)) Option {
	return func(a *Aggregator) { a.onSkip = fn }
}

// NewAggregator returns an Aggregator with opts applied.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAggregator = NewAggregator()

// Aggregate runs the default aggregator over entries.
func Aggregate(entries []domain.Entry) domain.WeeklyAggregate {
	return defaultAggregator.Aggregate(entries)
}

// Aggregate returns the per-weekday averages for entries.
func (a *Aggregator) Aggregate(entries []domain.Entry) domain.WeeklyAggregate {
	out, _ := a.AggregateWithStats(entries)
	return out
}

type accumulator struct {
	sum   float64
	count int
}

// AggregateWithStats is Aggregate plus a summary of skipped input.
//
// Each (weekday, dimension) average is taken over exactly the entries of that
// weekday that recorded the dimension with a numeric value; entries lacking
// it contribute nothing rather than a zero. Entries whose createdAt could not
// be parsed are skipped and logged.
func (a *Aggregator) AggregateWithStats(entries []domain.Entry) (domain.WeeklyAggregate, Stats) {
	stats := Stats{Entries: len(entries)}
	buckets := make(map[string]map[string]*accumulator)

	for i := range entries {
		entry := &entries[i]
		if !entry.CreatedAt.Valid() {
			stats.SkippedEntries++
			a.skip(SkipInvalidTimestamp)
			a.logger.Warn("skipping entry with unparsable createdAt",
				zap.String("entry_id", entry.ID),
				zap.String("user_id", entry.UserID))
			continue
		}

		created := entry.CreatedAt.Time
		if a.location != nil {
			created = created.In(a.location)
		}
		day := created.Weekday().String()

		contributed := false
		for key := range entry.Mood {
			score, ok := entry.Mood.Score(key)
			if !ok {
				stats.SkippedScores++
				a.skip(SkipNonNumericScore)
				a.logger.Debug("ignoring non-numeric mood score",
					zap.String("entry_id", entry.ID),
					zap.String("mood", key))
				continue
			}
			dims, ok := buckets[day]
			if !ok {
				dims = make(map[string]*accumulator)
				buckets[day] = dims
			}
			acc, ok := dims[key]
			if !ok {
				acc = &accumulator{}
				dims[key] = acc
			}
			acc.sum += score
			acc.count++
			contributed = true
		}
		if contributed {
			stats.Contributing++
		}
	}

	out := make(domain.WeeklyAggregate, len(buckets))
	for day, dims := range buckets {
		averages := make(map[string]float64, len(dims))
		for key, acc := range dims {
			averages[key] = acc.sum / float64(acc.count)
		}
		out[day] = averages
	}
	return out, stats
}

func (a *Aggregator) skip(reason string) {
	if a.onSkip != nil {
		a.onSkip(reason)
	}
}
