package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/storage/order"
)

// Config configures the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "mj"
}

// Store keeps users and entries as JSON strings in Redis.
// Keys are namespaced as "{prefix}:entry:{id}", "{prefix}:user:{id}",
// "{prefix}:firebase:{uid}" and the sets "{prefix}:users", "{prefix}:entries"
// and "{prefix}:user-entries:{uid}".
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Open connects to the server described by cfg and verifies it responds.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewStore(client, cfg.Prefix), nil
}

// NewStore wraps an existing client.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "mj"
	}
	return &Store{client: client, prefix: prefix}
}

// Close releases the underlying resources.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) userKey(id string) string         { return s.prefix + ":user:" + id }
func (s *Store) firebaseKey(uid string) string    { return s.prefix + ":firebase:" + uid }
func (s *Store) entryKey(id string) string        { return s.prefix + ":entry:" + id }
func (s *Store) userEntriesKey(uid string) string { return s.prefix + ":user-entries:" + uid }
func (s *Store) usersKey() string                 { return s.prefix + ":users" }
func (s *Store) entriesKey() string               { return s.prefix + ":entries" }

// CreateUser stores u, rejecting a duplicate id or firebase uid.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if n, err := s.client.Exists(ctx, s.userKey(u.ID)).Result(); err != nil {
		return fmt.Errorf("check user: %w", err)
	} else if n > 0 {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrConflict)
	}
	claimed, err := s.client.SetNX(ctx, s.firebaseKey(u.FirebaseID), u.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim firebase id: %w", err)
	}
	if !claimed {
		return fmt.Errorf("firebase id %q: %w", u.FirebaseID, domain.ErrConflict)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(u.ID), data, 0)
		pipe.SAdd(ctx, s.usersKey(), u.ID)
		return nil
	})
	if err != nil {
		// Release the claim so the uid can register again.
		if relErr := s.client.Del(context.WithoutCancel(ctx), s.firebaseKey(u.FirebaseID)).Err(); relErr != nil {
			return fmt.Errorf("store user: %w (release firebase id: %v)", err, relErr)
		}
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := getJSON(ctx, s.client, s.userKey(id), &u, "user "+id)
	return u, err
}

// FindUserByFirebaseID looks a user up by auth provider uid.
func (s *Store) FindUserByFirebaseID(ctx context.Context, firebaseID string) (domain.User, error) {
	id, err := s.client.Get(ctx, s.firebaseKey(firebaseID)).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.User{}, fmt.Errorf("firebase id %q: %w", firebaseID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get firebase id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user and every entry they own.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	entryIDs, err := s.client.SMembers(ctx, s.userEntriesKey(id)).Result()
	if err != nil {
		return fmt.Errorf("list user entries: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, entryID := range entryIDs {
			pipe.Del(ctx, s.entryKey(entryID))
			pipe.SRem(ctx, s.entriesKey(), entryID)
		}
		pipe.Del(ctx, s.userEntriesKey(id), s.firebaseKey(u.FirebaseID), s.userKey(id))
		pipe.SRem(ctx, s.usersKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// CreateEntry stores e, rejecting a duplicate id.
func (s *Store) CreateEntry(ctx context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.entryKey(e.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	if !created {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrConflict)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, s.userEntriesKey(e.UserID), e.ID)
		pipe.SAdd(ctx, s.entriesKey(), e.ID)
		return nil
	})
	if err != nil {
		if relErr := s.client.Del(context.WithoutCancel(ctx), s.entryKey(e.ID)).Err(); relErr != nil {
			return fmt.Errorf("index entry: %w (remove entry: %v)", err, relErr)
		}
		return fmt.Errorf("index entry: %w", err)
	}
	return nil
}

// GetEntry returns the entry with id.
func (s *Store) GetEntry(ctx context.Context, id string) (domain.Entry, error) {
	var e domain.Entry
	err := getJSON(ctx, s.client, s.entryKey(id), &e, "entry "+id)
	return e, err
}

// ListEntries returns entries newest first, limited by q.
func (s *Store) ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.Entry, error) {
	set := s.entriesKey()
	if q.UserID != "" {
		set = s.userEntriesKey(q.UserID)
	}
	ids, err := s.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("list entry ids: %w", err)
	}
	out := make([]domain.Entry, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Index points at a deleted entry.
			continue
		}
		var e domain.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, e)
	}
	return order.NewestFirst(out, q.Limit), nil
}

// UpdateEntry replaces an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return s.watchEntry(ctx, e.ID, func(tx *goredis.Tx, existing domain.Entry) error {
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.entryKey(e.ID), data, 0)
			if existing.UserID != e.UserID {
				pipe.SRem(ctx, s.userEntriesKey(existing.UserID), e.ID)
				pipe.SAdd(ctx, s.userEntriesKey(e.UserID), e.ID)
			}
			return nil
		})
		return err
	})
}

// DeleteEntry removes the entry with id.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return s.watchEntry(ctx, id, func(tx *goredis.Tx, existing domain.Entry) error {
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, s.entryKey(id))
			pipe.SRem(ctx, s.userEntriesKey(existing.UserID), id)
			pipe.SRem(ctx, s.entriesKey(), id)
			return nil
		})
		return err
	})
}

const maxTxRetries = 5

// watchEntry loads the entry under WATCH and runs write inside the same
// optimistic transaction. The transaction is retried when another client
// touches the entry between the read and the write.
func (s *Store) watchEntry(ctx context.Context, id string, write func(tx *goredis.Tx, existing domain.Entry) error) error {
	key := s.entryKey(id)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			var existing domain.Entry
			if err := getJSON(ctx, tx, key, &existing, "entry "+id); err != nil {
				return err
			}
			return write(tx, existing)
		}, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("write entry %s: %w", id, err)
		}
		return err
	}
	return fmt.Errorf("entry %s changed concurrently: %w", id, domain.ErrConflict)
}

// Stats counts stored users and entries.
func (s *Store) Stats(ctx context.Context) (users, entries int, err error) {
	nu, err := s.client.SCard(ctx, s.usersKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	ne, err := s.client.SCard(ctx, s.entriesKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("count entries: %w", err)
	}
	return int(nu), int(ne), nil
}

// getter is satisfied by both clients and WATCH transactions.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func getJSON(ctx context.Context, c getter, key string, v any, what string) error {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", what, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
