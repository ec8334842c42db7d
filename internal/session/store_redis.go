package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the narrow persistence contract the state machine consumes:
// get by id, conditional insert, conditional update, conditional delete.
// All coordination between concurrent transitions happens through these
// conditions; the machine takes no locks.
type Store interface {
	// Get returns the stored session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Put inserts a new session, failing with ErrExists when the id is taken.
	Put(ctx context.Context, s *Session) error
	// Update runs apply against a fresh copy of the record and writes the
	// result only if the record was untouched meanwhile; a lost race returns
	// ErrConflict. apply may abort the update by returning an error.
	Update(ctx context.Context, id string, apply func(*Session) error) (*Session, error)
	// Delete removes the record when cond holds against the current state at
	// delete time. Returns whether a delete happened.
	Delete(ctx context.Context, id string, cond func(*Session) bool) (bool, error)
}

// RedisStore keeps each session as one JSON value and implements the
// conditional-write contract with SETNX and WATCH transactions.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps records forever;
// a positive ttl is refreshed on every write.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return "game:session:" + strings.TrimSpace(id) }

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, sessionKey(sess.ID), raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, apply func(*Session) error) (*Session, error) {
	key := sessionKey(id)
	var out *Session
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if err := apply(&cur); err != nil {
			return err
		}
		cur.UpdatedAt = time.Now().UTC()
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string, cond func(*Session) bool) (bool, error) {
	key := sessionKey(id)
	deleted := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cond != nil && !cond(&cur) {
			return nil
		}
		pipe := tx.TxPipeline()
		pipe.Del(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		deleted = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, ErrConflict
	}
	if err != nil {
		return false, err
	}
	return deleted, nil
}
