// Package storagetest provides the behavioural suite every journal.Store
// backend must pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/journal"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) journal.Store

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func user(id, firebaseID string) domain.User {
	return domain.User{ID: id, FirebaseID: firebaseID, Email: id + "@example.com", CreatedAt: base, UpdatedAt: base}
}

func entry(id, userID string, offset time.Duration, mood domain.Mood) domain.Entry {
	at := domain.At(base.Add(offset))
	return domain.Entry{ID: id, UserID: userID, Title: "title " + id, Body: "body " + id, Mood: mood, CreatedAt: at, UpdatedAt: at}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Entries", func(t *testing.T) { testEntries(t, newStore(t)) })
	t.Run("ListOrderAndLimit", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testCascade(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
}

func testUsers(t *testing.T, s journal.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, user("u1", "fb-1")))
	assert.ErrorIs(t, s.CreateUser(ctx, user("u2", "fb-1")), domain.ErrConflict)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "fb-1", got.FirebaseID)
	assert.True(t, base.Equal(got.CreatedAt))

	got, err = s.FindUserByFirebaseID(ctx, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindUserByFirebaseID(ctx, "fb-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, "missing"), domain.ErrNotFound)
}

func testEntries(t *testing.T, s journal.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "fb-1")))

	e := entry("e1", "u1", 0, domain.Mood{"happy": 80.0, "anxious": 12.5})
	require.NoError(t, s.CreateEntry(ctx, e))
	assert.ErrorIs(t, s.CreateEntry(ctx, e), domain.ErrConflict)

	got, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e.Title, got.Title)
	assert.Equal(t, e.Body, got.Body)
	assert.Equal(t, e.UserID, got.UserID)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt.Time))
	score, ok := got.Mood.Score("anxious")
	assert.True(t, ok)
	assert.Equal(t, 12.5, score)

	got.Title = "edited"
	got.Mood = domain.Mood{"happy": 20.0}
	got.UpdatedAt = domain.At(base.Add(time.Hour))
	require.NoError(t, s.UpdateEntry(ctx, got))

	reread, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "edited", reread.Title)
	_, ok = reread.Mood.Score("anxious")
	assert.False(t, ok)
	assert.True(t, base.Add(time.Hour).Equal(reread.UpdatedAt.Time))
	assert.True(t, base.Equal(reread.CreatedAt.Time))

	assert.ErrorIs(t, s.UpdateEntry(ctx, entry("nope", "u1", 0, nil)), domain.ErrNotFound)

	require.NoError(t, s.DeleteEntry(ctx, "e1"))
	_, err = s.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteEntry(ctx, "e1"), domain.ErrNotFound)
}

func testListOrder(t *testing.T, s journal.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "fb-1")))
	require.NoError(t, s.CreateUser(ctx, user("u2", "fb-2")))

	require.NoError(t, s.CreateEntry(ctx, entry("old", "u1", 0, nil)))
	require.NoError(t, s.CreateEntry(ctx, entry("new", "u1", 48*time.Hour, nil)))
	require.NoError(t, s.CreateEntry(ctx, entry("mid", "u1", 24*time.Hour, domain.Mood{"happy": 50.0})))
	require.NoError(t, s.CreateEntry(ctx, entry("other", "u2", 72*time.Hour, nil)))

	got, err := s.ListEntries(ctx, domain.EntryQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(got))

	got, err = s.ListEntries(ctx, domain.EntryQuery{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid"}, ids(got))

	got, err = s.ListEntries(ctx, domain.EntryQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "new", "mid", "old"}, ids(got))

	got, err = s.ListEntries(ctx, domain.EntryQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCascade(t *testing.T, s journal.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "fb-1")))
	require.NoError(t, s.CreateUser(ctx, user("u2", "fb-2")))
	require.NoError(t, s.CreateEntry(ctx, entry("a", "u1", 0, nil)))
	require.NoError(t, s.CreateEntry(ctx, entry("b", "u2", 0, nil)))

	require.NoError(t, s.DeleteUser(ctx, "u1"))

	_, err := s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetEntry(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetEntry(ctx, "b")
	assert.NoError(t, err)

	// The firebase id is free again.
	assert.NoError(t, s.CreateUser(ctx, user("u3", "fb-1")))
}

func testStats(t *testing.T, s journal.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("u1", "fb-1")))
	require.NoError(t, s.CreateEntry(ctx, entry("a", "u1", 0, nil)))
	require.NoError(t, s.CreateEntry(ctx, entry("b", "u1", time.Hour, nil)))

	users, entries, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)
	assert.Equal(t, 2, entries)
}

func ids(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
