// Package badgerstore keeps sessions in an embedded BadgerDB, one JSON
// document per session.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

const keyPrefix = "session/"

// timeNow is swapped in tests.
var timeNow = time.Now

// Store is the Badger session backend.
type Store struct {
	db *badger.DB
}

var _ session.Backend = (*Store)(nil)

// Open opens (creating if needed) a Badger database in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func key(id string) []byte { return []byte(keyPrefix + id) }

func get(txn *badger.Txn, id string) (*session.Session, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	var sess session.Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sess)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return &sess, nil
}

func put(txn *badger.Txn, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", sess.ID, err)
	}
	return txn.Set(key(sess.ID), data)
}

// update runs fn in a read-write transaction. A Badger transaction
// conflict is reported as session.ErrConflict.
func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return session.ErrConflict
	}
	return err
}

// GetSession returns the session, or nil if id is unknown.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *session.Session
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = get(txn, id)
		return err
	})
	return out, err
}

// UpsertSession stores sess. sess.Version must match the stored version,
// or be 0 for a new session.
func (s *Store) UpsertSession(ctx context.Context, sess session.Session) error {
	if err := validateWords(sess.Words); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		cur, err := get(txn, sess.ID)
		if err != nil {
			return err
		}
		var version int64
		if cur != nil {
			version = cur.Version
			sess.CreatedAt = cur.CreatedAt
		}
		if sess.Version != version {
			return session.ErrConflict
		}
		if sess.CreatedAt.IsZero() {
			sess.CreatedAt = timeNow()
		}
		sess.Version = version + 1
		return put(txn, sess)
	})
}

// modify loads id, applies fn, bumps the version and writes it back.
func (s *Store) modify(ctx context.Context, id string, fn func(*session.Session)) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		cur, err := get(txn, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("session %s: %w", id, session.ErrNotFound)
		}
		fn(cur)
		cur.Version++
		return put(txn, *cur)
	})
}

// AppendWords adds words after the session's last word.
func (s *Store) AppendWords(ctx context.Context, id string, words []transcript.Word) error {
	if err := validateWords(words); err != nil {
		return err
	}
	return s.modify(ctx, id, func(sess *session.Session) {
		sess.Words = append(sess.Words, words...)
	})
}

// ReplaceWords swaps the session's whole transcript for words.
func (s *Store) ReplaceWords(ctx context.Context, id string, words []transcript.Word) error {
	if err := validateWords(words); err != nil {
		return err
	}
	return s.modify(ctx, id, func(sess *session.Session) {
		sess.Words = append([]transcript.Word(nil), words...)
	})
}

// SetRecordStart stores when recording began.
func (s *Store) SetRecordStart(ctx context.Context, id string, t time.Time) error {
	return s.modify(ctx, id, func(sess *session.Session) { sess.RecordStart = &t })
}

// SetRecordEnd stores when recording stopped.
func (s *Store) SetRecordEnd(ctx context.Context, id string, t time.Time) error {
	return s.modify(ctx, id, func(sess *session.Session) { sess.RecordEnd = &t })
}

// ListSessions returns every session without its words, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []session.Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sess session.Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			}); err != nil {
				return fmt.Errorf("unmarshal %s: %w", it.Item().Key(), err)
			}
			out = append(out, session.Summary{
				ID:          sess.ID,
				Title:       sess.Title,
				CreatedAt:   sess.CreatedAt,
				RecordStart: sess.RecordStart,
				RecordEnd:   sess.RecordEnd,
				WordCount:   len(sess.Words),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func validateWords(words []transcript.Word) error {
	for i, w := range words {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("word %d: %w", i, err)
		}
	}
	return nil
}
