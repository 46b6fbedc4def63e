package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/storage/order"
)

// Store is an in-memory data store used for development and tests.
type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	byFirebase map[string]string
	entries    map[string]domain.Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]domain.User),
		byFirebase: make(map[string]string),
		entries:    make(map[string]domain.Entry),
	}
}

// CreateUser persists u, rejecting a second user with the same firebase id.
func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byFirebase[u.FirebaseID]; ok {
		return fmt.Errorf("firebase id %q: %w", u.FirebaseID, domain.ErrConflict)
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrConflict)
	}
	s.users[u.ID] = u
	s.byFirebase[u.FirebaseID] = u.ID
	return nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// FindUserByFirebaseID looks a user up by auth provider uid.
func (s *Store) FindUserByFirebaseID(_ context.Context, firebaseID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFirebase[firebaseID]
	if !ok {
		return domain.User{}, fmt.Errorf("firebase id %q: %w", firebaseID, domain.ErrNotFound)
	}
	return s.users[id], nil
}

// DeleteUser removes the user and every entry they own.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.byFirebase, u.FirebaseID)
	for entryID, e := range s.entries {
		if e.UserID == id {
			delete(s.entries, entryID)
		}
	}
	return nil
}

// CreateEntry persists a new entry.
func (s *Store) CreateEntry(_ context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.ID]; ok {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrConflict)
	}
	s.entries[e.ID] = e.Clone()
	return nil
}

// GetEntry returns the entry with id.
func (s *Store) GetEntry(_ context.Context, id string) (domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return e.Clone(), nil
}

// ListEntries returns the matching entries, newest first.
func (s *Store) ListEntries(_ context.Context, q domain.EntryQuery) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		out = append(out, e.Clone())
	}
	return order.NewestFirst(out, q.Limit), nil
}

// UpdateEntry replaces a stored entry.
func (s *Store) UpdateEntry(_ context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.ID]; !ok {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
	}
	s.entries[e.ID] = e.Clone()
	return nil
}

// DeleteEntry removes the entry with id.
func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}

// Stats reports the number of stored users and entries.
func (s *Store) Stats(_ context.Context) (users, entries int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.entries), nil
}

// Close releases the underlying resources.
func (s *Store) Close() error { return nil }
