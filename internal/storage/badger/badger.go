// Package badger stores users and entries in an embedded BadgerDB.
//
// Layout:
//
//	user/<id>            -> JSON domain.User
//	firebase/<uid>       -> user id
//	entry/<id>           -> JSON domain.Entry
//	user-entry/<uid>/<id> -> empty (per-user index)
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/storage/order"
)

// Config holds configuration for the Badger store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// GCDiscardRatio is the minimum ratio of discardable data before value
	// log GC rewrites a file. Default: 0.5.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *zap.Logger
}

// badgerLogger adapts zap to BadgerDB's Logger interface.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.sugar.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.sugar.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.sugar.Debugf(format, args...) }

// Store implements journal.Store on BadgerDB.
type Store struct {
	db       *badger.DB
	inMemory bool
	discard  float64
}

// Open creates and opens the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{sugar: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	discard := cfg.GCDiscardRatio
	if discard <= 0 || discard >= 1 {
		discard = 0.5
	}
	return &Store{db: db, inMemory: cfg.InMemory, discard: discard}, nil
}

// Close releases the underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC rewrites value log files until nothing more can be reclaimed.
func (s *Store) RunGC() error {
	if s.inMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.discard)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}

func userKey(id string) []byte          { return []byte("user/" + id) }
func firebaseKey(uid string) []byte     { return []byte("firebase/" + uid) }
func entryKey(id string) []byte         { return []byte("entry/" + id) }
func userEntryPrefix(uid string) []byte { return []byte("user-entry/" + uid + "/") }
func userEntryKey(uid, id string) []byte {
	return append(userEntryPrefix(uid), id...)
}

// CreateUser stores u, rejecting a duplicate id or firebase uid.
func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{firebaseKey(u.FirebaseID), userKey(u.ID)} {
			if exists, err := has(txn, key); err != nil {
				return err
			} else if exists {
				return fmt.Errorf("user %s: %w", u.ID, domain.ErrConflict)
			}
		}
		if err := txn.Set(userKey(u.ID), data); err != nil {
			return err
		}
		return txn.Set(firebaseKey(u.FirebaseID), []byte(u.ID))
	})
}

// GetUser returns the user with id.
func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &u, "user "+id)
	})
	return u, err
}

// FindUserByFirebaseID looks a user up by auth provider uid.
func (s *Store) FindUserByFirebaseID(ctx context.Context, firebaseID string) (domain.User, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(firebaseKey(firebaseID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("firebase id %q: %w", firebaseID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		id = string(val)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user, their firebase mapping and every entry they own.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var u domain.User
		if err := getJSON(txn, userKey(id), &u, "user "+id); err != nil {
			return err
		}

		entryIDs, err := s.indexedEntries(txn, id)
		if err != nil {
			return err
		}
		for _, entryID := range entryIDs {
			if err := txn.Delete(entryKey(entryID)); err != nil {
				return err
			}
			if err := txn.Delete(userEntryKey(id, entryID)); err != nil {
				return err
			}
		}
		if err := txn.Delete(firebaseKey(u.FirebaseID)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

// CreateEntry stores e, rejecting a duplicate id.
func (s *Store) CreateEntry(_ context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := has(txn, entryKey(e.ID)); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("entry %s: %w", e.ID, domain.ErrConflict)
		}
		if err := txn.Set(entryKey(e.ID), data); err != nil {
			return err
		}
		return txn.Set(userEntryKey(e.UserID, e.ID), nil)
	})
}

// GetEntry returns the entry with id.
func (s *Store) GetEntry(_ context.Context, id string) (domain.Entry, error) {
	var e domain.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, entryKey(id), &e, "entry "+id)
	})
	return e, err
}

// ListEntries returns entries newest first, limited by q.
func (s *Store) ListEntries(_ context.Context, q domain.EntryQuery) ([]domain.Entry, error) {
	out := []domain.Entry{}
	err := s.db.View(func(txn *badger.Txn) error {
		if q.UserID == "" {
			return iterate(txn, []byte("entry/"), func(item *badger.Item) error {
				var e domain.Entry
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				out = append(out, e)
				return nil
			})
		}

		ids, err := s.indexedEntries(txn, q.UserID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			var e domain.Entry
			if err := getJSON(txn, entryKey(id), &e, "entry "+id); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order.NewestFirst(out, q.Limit), nil
}

// UpdateEntry replaces an existing entry.
func (s *Store) UpdateEntry(_ context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		var existing domain.Entry
		if err := getJSON(txn, entryKey(e.ID), &existing, "entry "+e.ID); err != nil {
			return err
		}
		if existing.UserID != e.UserID {
			if err := txn.Delete(userEntryKey(existing.UserID, e.ID)); err != nil {
				return err
			}
			if err := txn.Set(userEntryKey(e.UserID, e.ID), nil); err != nil {
				return err
			}
		}
		return txn.Set(entryKey(e.ID), data)
	})
}

// DeleteEntry removes the entry with id.
func (s *Store) DeleteEntry(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var existing domain.Entry
		if err := getJSON(txn, entryKey(id), &existing, "entry "+id); err != nil {
			return err
		}
		if err := txn.Delete(userEntryKey(existing.UserID, id)); err != nil {
			return err
		}
		return txn.Delete(entryKey(id))
	})
}

// Stats counts stored users and entries.
func (s *Store) Stats(_ context.Context) (users, entries int, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		countKeys := func(prefix string) (int, error) {
			n := 0
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
				n++
			}
			return n, nil
		}
		var err error
		if users, err = countKeys("user/"); err != nil {
			return err
		}
		entries, err = countKeys("entry/")
		return err
	})
	return users, entries, err
}

func (s *Store) indexedEntries(txn *badger.Txn, userID string) ([]string, error) {
	prefix := userEntryPrefix(userID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	return ids, nil
}

func iterate(txn *badger.Txn, prefix []byte, fn func(*badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

func has(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func getJSON(txn *badger.Txn, key []byte, v any, what string) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
