package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/journal"
	"github.com/basicrecords/moodjournal/internal/storage/storagetest"
)

func TestStoreContractInMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) journal.Store {
		s, err := Open(Config{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStoreContractOnDisk(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) journal.Store {
		s, err := Open(Config{Path: t.TempDir()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	at := domain.At(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))

	s, err := Open(Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "u1", FirebaseID: "fb"}))
	require.NoError(t, s.CreateEntry(ctx, domain.Entry{ID: "e1", UserID: "u1", Title: "t", Body: "b", Mood: domain.Mood{"calm": 33}, CreatedAt: at, UpdatedAt: at}))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ListEntries(ctx, domain.EntryQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Tuesday, got[0].CreatedAt.Weekday())
	assert.NoError(t, s.RunGC())
}

func TestRunGCInMemoryIsNoop(t *testing.T) {
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.RunGC())
}
