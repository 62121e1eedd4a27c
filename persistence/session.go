// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package persistence

import (
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// SessionStore is the embedded tidwall/buntdb-backed session cache of
// spec.md §4.13: string key -> string value with TTL, covering
// player:<id>:session, player:<id>:pos, zone:<id>:players,
// zone:<id>:entities, entity:<id>:state (spec.md §6). Writes go through a
// single background goroutine so PutSession never blocks its caller.
type SessionStore struct {
	db     *buntdb.DB
	writes chan sessionWrite
	onErr  ErrorFunc
	done   chan struct{}
}

type sessionWrite struct {
	key, value string
	ttl        time.Duration
}

// NewSessionStore opens (or creates) the session cache at path (":memory:"
// for an ephemeral store) and starts its async writer. onErr may be nil.
func NewSessionStore(path string, onErr ErrorFunc) (*SessionStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open session store: %w", err)
	}
	if onErr == nil {
		onErr = func(string, error) {}
	}
	s := &SessionStore{
		db:     db,
		writes: make(chan sessionWrite, 256),
		onErr:  onErr,
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *SessionStore) run() {
	for w := range s.writes {
		ttl := w.ttl
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		err := s.db.Update(func(tx *buntdb.Tx) error {
			_, _, err := tx.Set(w.key, w.value, &buntdb.SetOptions{Expires: true, TTL: ttl})
			return err
		})
		if err != nil {
			s.onErr("session_put", err)
		}
	}
	close(s.done)
}

// PutSession enqueues an async write; never blocks the tick thread.
func (s *SessionStore) PutSession(key, value string, ttl time.Duration) {
	select {
	case s.writes <- sessionWrite{key, value, ttl}:
	default:
		s.onErr("session_put", fmt.Errorf("persistence: write queue full, dropped key %q", key))
	}
}

// GetSession synchronously reads a key (expired keys read back as !ok,
// buntdb evicts them lazily).
func (s *SessionStore) GetSession(key string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			if err == buntdb.ErrNotFound {
				return nil
			}
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("persistence: get session key %q: %w", key, err)
	}
	return value, found, nil
}

// Close stops the async writer and closes the underlying store. Blocks
// until queued writes drain, so callers should invoke it only during
// zone shutdown, never from the tick thread.
func (s *SessionStore) Close() error {
	close(s.writes)
	<-s.done
	return s.db.Close()
}
