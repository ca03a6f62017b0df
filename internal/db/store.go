package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"

	_ "modernc.org/sqlite"
)

// Store is the SQLite session backend.
type Store struct {
	db *sql.DB
}

var _ session.Backend = (*Store)(nil)

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "Steno", "notes.sqlite")
}

// Open opens (creating if needed) the database at path and migrates it.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has one writer; a single connection also keeps :memory: to one database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetSession returns the session and its words, or nil if id is unknown.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, preMeetingMemoHtml, rawMemoHtml, enhancedMemoHtml,
			recordStart, recordEnd, createdAt, version
		FROM sessions
		WHERE id = ?
	`, id)

	var sess session.Session
	var recordStart, recordEnd sql.NullFloat64
	var createdAt float64
	if err := row.Scan(&sess.ID, &sess.Title, &sess.PreMeetingMemoHTML, &sess.RawMemoHTML,
		&sess.EnhancedMemoHTML, &recordStart, &recordEnd, &createdAt, &sess.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.RecordStart = timePtr(recordStart)
	sess.RecordEnd = timePtr(recordEnd)
	sess.CreatedAt = timeFromUnix(createdAt)

	words, err := loadWords(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	sess.Words = words
	return &sess, nil
}

func loadWords(ctx context.Context, q querier, id string) ([]transcript.Word, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT text, speakerKind, speakerIndex, speakerId, speakerLabel, confidence, startMs, endMs
		FROM words
		WHERE sessionId = ?
		ORDER BY sequenceNumber ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	var words []transcript.Word
	for rows.Next() {
		var r wordRow
		if err := rows.Scan(&r.Text, &r.SpeakerKind, &r.SpeakerIndex, &r.SpeakerID,
			&r.SpeakerLabel, &r.Confidence, &r.StartMS, &r.EndMS); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, r.word())
	}
	return words, rows.Err()
}

// UpsertSession writes sess as the whole row, words included. sess.Version
// must match the stored version, or be 0 when the row does not exist yet.
func (s *Store) UpsertSession(ctx context.Context, sess session.Session) error {
	if err := validateWords(sess.Words); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := unixFromTime(time.Now())

		var version int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM sessions WHERE id = ?`, sess.ID).Scan(&version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if sess.Version != 0 {
				return session.ErrConflict
			}
			createdAt := now
			if !sess.CreatedAt.IsZero() {
				createdAt = unixFromTime(sess.CreatedAt)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sessions (id, title, preMeetingMemoHtml, rawMemoHtml, enhancedMemoHtml,
					recordStart, recordEnd, createdAt, updatedAt, version)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			`, sess.ID, sess.Title, sess.PreMeetingMemoHTML, sess.RawMemoHTML, sess.EnhancedMemoHTML,
				nullTime(sess.RecordStart), nullTime(sess.RecordEnd), createdAt, now); err != nil {
				return fmt.Errorf("insert session: %w", err)
			}
		case err != nil:
			return fmt.Errorf("read version: %w", err)
		case version != sess.Version:
			return session.ErrConflict
		default:
			if _, err := tx.ExecContext(ctx, `
				UPDATE sessions SET title = ?, preMeetingMemoHtml = ?, rawMemoHtml = ?,
					enhancedMemoHtml = ?, recordStart = ?, recordEnd = ?,
					updatedAt = ?, version = version + 1
				WHERE id = ?
			`, sess.Title, sess.PreMeetingMemoHTML, sess.RawMemoHTML, sess.EnhancedMemoHTML,
				nullTime(sess.RecordStart), nullTime(sess.RecordEnd), now, sess.ID); err != nil {
				return fmt.Errorf("update session: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM words WHERE sessionId = ?`, sess.ID); err != nil {
				return fmt.Errorf("clear words: %w", err)
			}
		}
		return insertWords(ctx, tx, sess.ID, 0, sess.Words)
	})
}

// AppendWords adds words after the session's last word.
func (s *Store) AppendWords(ctx context.Context, id string, words []transcript.Word) error {
	if err := validateWords(words); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := touch(ctx, tx, id); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequenceNumber) + 1, 0) FROM words WHERE sessionId = ?
		`, id).Scan(&next); err != nil {
			return fmt.Errorf("read sequence: %w", err)
		}
		return insertWords(ctx, tx, id, next, words)
	})
}

// ReplaceWords swaps the session's whole transcript for words.
func (s *Store) ReplaceWords(ctx context.Context, id string, words []transcript.Word) error {
	if err := validateWords(words); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := touch(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM words WHERE sessionId = ?`, id); err != nil {
			return fmt.Errorf("clear words: %w", err)
		}
		return insertWords(ctx, tx, id, 0, words)
	})
}

// SetRecordStart stores when recording began.
func (s *Store) SetRecordStart(ctx context.Context, id string, t time.Time) error {
	return s.setRecordField(ctx, id, "recordStart", t)
}

// SetRecordEnd stores when recording stopped.
func (s *Store) SetRecordEnd(ctx context.Context, id string, t time.Time) error {
	return s.setRecordField(ctx, id, "recordEnd", t)
}

func (s *Store) setRecordField(ctx context.Context, id, column string, t time.Time) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE sessions SET %s = ?, updatedAt = ?, version = version + 1 WHERE id = ?
	`, column), unixFromTime(t), unixFromTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if n == 0 {
		return fmt.Errorf("set %s on %s: %w", column, id, session.ErrNotFound)
	}
	return nil
}

// ListSessions returns every session without its words, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.createdAt, s.recordStart, s.recordEnd,
			(SELECT COUNT(*) FROM words w WHERE w.sessionId = s.id)
		FROM sessions s
		ORDER BY s.createdAt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Summary
	for rows.Next() {
		var sum session.Summary
		var createdAt float64
		var recordStart, recordEnd sql.NullFloat64
		if err := rows.Scan(&sum.ID, &sum.Title, &createdAt, &recordStart, &recordEnd, &sum.WordCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.CreatedAt = timeFromUnix(createdAt)
		sum.RecordStart = timePtr(recordStart)
		sum.RecordEnd = timePtr(recordEnd)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// touch bumps the row's version, failing with session.ErrNotFound when
// the row is missing.
func touch(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE sessions SET updatedAt = ?, version = version + 1 WHERE id = ?
	`, unixFromTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, session.ErrNotFound)
	}
	return nil
}

func insertWords(ctx context.Context, q querier, id string, first int, words []transcript.Word) error {
	for i, w := range words {
		r := rowFromWord(w)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO words (sessionId, sequenceNumber, text, speakerKind, speakerIndex,
				speakerId, speakerLabel, confidence, startMs, endMs)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, first+i, r.Text, r.SpeakerKind, r.SpeakerIndex, r.SpeakerID,
			r.SpeakerLabel, r.Confidence, r.StartMS, r.EndMS); err != nil {
			return fmt.Errorf("insert word %d: %w", first+i, err)
		}
	}
	return nil
}

func validateWords(words []transcript.Word) error {
	for i, w := range words {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("word %d: %w", i, err)
		}
	}
	return nil
}
