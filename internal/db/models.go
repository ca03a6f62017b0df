// Package db stores sessions and their transcripts in SQLite.
package db

import (
	"database/sql"
	"time"

	"github.com/jwulff/steno/notes/internal/transcript"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		preMeetingMemoHtml TEXT NOT NULL DEFAULT '',
		rawMemoHtml TEXT NOT NULL DEFAULT '',
		enhancedMemoHtml TEXT NOT NULL DEFAULT '',
		recordStart REAL,
		recordEnd REAL,
		createdAt REAL NOT NULL,
		updatedAt REAL NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS words (
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sequenceNumber INTEGER NOT NULL,
		text TEXT NOT NULL,
		speakerKind TEXT,
		speakerIndex INTEGER,
		speakerId TEXT,
		speakerLabel TEXT,
		confidence REAL,
		startMs INTEGER,
		endMs INTEGER,
		PRIMARY KEY (sessionId, sequenceNumber)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_createdAt ON sessions(createdAt);
`

// wordRow is one row of the words table.
type wordRow struct {
	Text         string
	SpeakerKind  sql.NullString
	SpeakerIndex sql.NullInt64
	SpeakerID    sql.NullString
	SpeakerLabel sql.NullString
	Confidence   sql.NullFloat64
	StartMS      sql.NullInt64
	EndMS        sql.NullInt64
}

func rowFromWord(w transcript.Word) wordRow {
	r := wordRow{Text: w.Text}
	if sp := w.Speaker; sp != nil {
		r.SpeakerKind = sql.NullString{String: string(sp.Kind), Valid: true}
		switch sp.Kind {
		case transcript.SpeakerUnassigned:
			r.SpeakerIndex = sql.NullInt64{Int64: int64(sp.Index), Valid: true}
		case transcript.SpeakerAssigned:
			r.SpeakerID = sql.NullString{String: sp.ID, Valid: true}
			r.SpeakerLabel = sql.NullString{String: sp.Label, Valid: sp.Label != ""}
		}
	}
	if w.Confidence != nil {
		r.Confidence = sql.NullFloat64{Float64: *w.Confidence, Valid: true}
	}
	if w.StartMS != nil {
		r.StartMS = sql.NullInt64{Int64: *w.StartMS, Valid: true}
	}
	if w.EndMS != nil {
		r.EndMS = sql.NullInt64{Int64: *w.EndMS, Valid: true}
	}
	return r
}

func (r wordRow) word() transcript.Word {
	w := transcript.Word{Text: r.Text}
	if r.SpeakerKind.Valid {
		switch transcript.SpeakerKind(r.SpeakerKind.String) {
		case transcript.SpeakerUnassigned:
			w.Speaker = transcript.Unassigned(int(r.SpeakerIndex.Int64))
		case transcript.SpeakerAssigned:
			w.Speaker = transcript.Assigned(r.SpeakerID.String, r.SpeakerLabel.String)
		}
	}
	if r.Confidence.Valid {
		w.Confidence = transcript.Float(r.Confidence.Float64)
	}
	if r.StartMS.Valid {
		w.StartMS = transcript.Ms(r.StartMS.Int64)
	}
	if r.EndMS.Valid {
		w.EndMS = transcript.Ms(r.EndMS.Int64)
	}
	return w
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func nullTime(t *time.Time) sql.NullFloat64 {
	if t == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: unixFromTime(*t), Valid: true}
}

func timePtr(v sql.NullFloat64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := timeFromUnix(v.Float64)
	return &t
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
