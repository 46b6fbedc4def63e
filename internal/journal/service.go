// Package journal implements the journal operations on top of a Store:
// user registration, entry CRUD, mood-filtered listings and weekly mood
// insights. Every read recomputes its derived views from a fresh store
// snapshot, so results always reflect the latest mutation.
package journal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/metrics"
	"github.com/basicrecords/moodjournal/internal/mood"
)

// Store abstracts the persistence layer so memory, SQLite, Badger and Redis
// backends can be swapped freely. Implementations return errors wrapping
// domain.ErrNotFound and domain.ErrConflict.
type Store interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	FindUserByFirebaseID(ctx context.Context, firebaseID string) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateEntry(ctx context.Context, e domain.Entry) error
	GetEntry(ctx context.Context, id string) (domain.Entry, error)
	ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.Entry, error)
	UpdateEntry(ctx context.Context, e domain.Entry) error
	DeleteEntry(ctx context.Context, id string) error

	Stats(ctx context.Context) (users, entries int, err error)
	Close() error
}

// Options tune a Service. Zero values select defaults.
type Options struct {
	Logger *zap.Logger
	// Location fixes the zone used for weekday bucketing. Nil keeps each
	// timestamp's own zone.
	Location *time.Location
	// Precision is the number of decimals in presented averages.
	Precision int
	Clock     func() time.Time
	NewID     func() string
}

// Service coordinates validation, persistence and mood derivations.
type Service struct {
	store      Store
	logger     *zap.Logger
	validate   *validator.Validate
	aggregator *mood.Aggregator
	precision  int
	now        func() time.Time
	newID      func() string
}

// NewService builds a Service over store, filling unset options with defaults.
func NewService(store Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		store:     store,
		logger:    logger,
		validate:  newValidator(),
		precision: opts.Precision,
		now:       opts.Clock,
		newID:     opts.NewID,
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	aggOpts := []mood.Option{
		mood.WithLogger(logger.Named("insights")),
		mood.WithSkipHook(metrics.RecordAggregationSkip),
	}
	if opts.Location != nil {
		aggOpts = append(aggOpts, mood.WithLocation(opts.Location))
	}
	svc.aggregator = mood.NewAggregator(aggOpts...)
	return svc
}

// CreateUser registers the identity issued by the auth provider.
func (s *Service) CreateUser(ctx context.Context, in domain.CreateUserInput) (domain.User, error) {
	in.FirebaseID = strings.TrimSpace(in.FirebaseID)
	if err := s.check(in); err != nil {
		return domain.User{}, err
	}

	now := s.now()
	u := domain.User{
		ID:          s.newID(),
		FirebaseID:  in.FirebaseID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", zap.String("user_id", u.ID))
	return u, nil
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUser(ctx, id)
}

// FindUserByFirebaseID resolves a user from the auth provider uid.
func (s *Service) FindUserByFirebaseID(ctx context.Context, firebaseID string) (domain.User, error) {
	return s.store.FindUserByFirebaseID(ctx, firebaseID)
}

// DeleteUser removes a user together with their entries.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// CreateEntry validates and stores a new entry owned by in.UserID.
func (s *Service) CreateEntry(ctx context.Context, in domain.CreateEntryInput) (domain.Entry, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if err := s.check(in); err != nil {
		return domain.Entry{}, err
	}
	if err := in.Mood.Validate(); err != nil {
		return domain.Entry{}, err
	}
	if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Entry{}, &domain.ValidationError{Field: "userId", Reason: "unknown user"}
		}
		return domain.Entry{}, fmt.Errorf("lookup user: %w", err)
	}

	now := domain.At(s.now())
	e := domain.Entry{
		ID:        s.newID(),
		UserID:    in.UserID,
		Title:     in.Title,
		Body:      in.Body,
		Mood:      in.Mood.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return domain.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	metrics.RecordEntryMutation("create")
	return e, nil
}

// GetEntry returns the entry with id.
func (s *Service) GetEntry(ctx context.Context, id string) (domain.Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// UpdateEntry applies a partial update. createdAt never changes, so an edit
// does not move the entry to another weekday bucket.
func (s *Service) UpdateEntry(ctx context.Context, id string, in domain.UpdateEntryInput) (domain.Entry, error) {
	if err := s.check(in); err != nil {
		return domain.Entry{}, err
	}
	if in.Mood != nil {
		if err := in.Mood.Validate(); err != nil {
			return domain.Entry{}, err
		}
	}

	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return domain.Entry{}, err
	}
	if in.Title != nil {
		if e.Title = strings.TrimSpace(*in.Title); e.Title == "" {
			return domain.Entry{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
		}
	}
	if in.Body != nil {
		if e.Body = strings.TrimSpace(*in.Body); e.Body == "" {
			return domain.Entry{}, &domain.ValidationError{Field: "body", Reason: "must not be empty"}
		}
	}
	if in.Mood != nil {
		e.Mood = in.Mood.Clone()
	}
	e.UpdatedAt = domain.At(s.now())

	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return domain.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	metrics.RecordEntryMutation("update")
	return e, nil
}

// DeleteEntry removes the entry with id.
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	metrics.RecordEntryMutation("delete")
	return nil
}

// ListEntries returns entries newest first, narrowed by criteria. The limit
// applies after filtering.
func (s *Service) ListEntries(ctx context.Context, q domain.EntryQuery, criteria *domain.CriteriaSet) ([]domain.Entry, error) {
	limit := q.Limit
	q.Limit = 0
	entries, err := s.store.ListEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	metrics.RecordFilterRequest(criteria.Len() > 0)
	filtered := mood.Filter(entries, criteria)
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// Insights is the weekly mood view for one user.
type Insights struct {
	UserID    string                 `json:"userId"`
	Criteria  *domain.CriteriaSet    `json:"criteria"`
	Aggregate domain.WeeklyAggregate `json:"aggregate"`
	Days      []mood.DaySummary      `json:"days"`
	Stats     mood.Stats             `json:"stats"`
}

// WeeklyInsights aggregates the user's entries that pass criteria by weekday.
// A negative precision falls back to the configured default.
func (s *Service) WeeklyInsights(ctx context.Context, userID string, criteria *domain.CriteriaSet, precision int) (Insights, error) {
	if strings.TrimSpace(userID) == "" {
		return Insights{}, &domain.ValidationError{Field: "userId", Reason: "is required"}
	}
	entries, err := s.ListEntries(ctx, domain.EntryQuery{UserID: userID}, criteria)
	if err != nil {
		return Insights{}, err
	}
	if precision < 0 {
		precision = s.precision
	}
	if criteria == nil {
		criteria = domain.NewCriteriaSet()
	}

	agg, stats := s.aggregator.AggregateWithStats(entries)
	return Insights{
		UserID:    userID,
		Criteria:  criteria,
		Aggregate: agg,
		Days:      mood.Summarize(agg, precision),
		Stats:     stats,
	}, nil
}

// RefreshStats publishes store record counts to the metrics registry.
func (s *Service) RefreshStats(ctx context.Context) error {
	users, entries, err := s.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("store stats: %w", err)
	}
	metrics.SetStoredRecords(users, entries)
	s.logger.Debug("store stats refreshed", zap.Int("users", users), zap.Int("entries", entries))
	return nil
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " check"}
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
