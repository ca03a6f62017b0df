// Package transcript models the committed word stream of a session and
// converts it to and from speaker-contiguous segments.
package transcript

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWord is returned by Word.Validate.
var ErrInvalidWord = errors.New("invalid word")

// SpeakerKind discriminates the two forms of a Speaker.
type SpeakerKind string

const (
	// SpeakerUnassigned is a provisional diarization slot known only by index.
	SpeakerUnassigned SpeakerKind = "unassigned"
	// SpeakerAssigned is bound to a known participant.
	SpeakerAssigned SpeakerKind = "assigned"
)

// Speaker identifies who said a word. A nil *Speaker means no attribution.
type Speaker struct {
	Kind  SpeakerKind `json:"kind"`
	Index int         `json:"index,omitempty"`
	ID    string      `json:"id,omitempty"`
	Label string      `json:"label,omitempty"`
}

// Unassigned returns a provisional speaker for a diarization channel.
func Unassigned(index int) *Speaker {
	return &Speaker{Kind: SpeakerUnassigned, Index: index}
}

// Assigned returns a speaker bound to a participant.
func Assigned(id, label string) *Speaker {
	return &Speaker{Kind: SpeakerAssigned, ID: id, Label: label}
}

// SameSpeaker reports whether a and b group into the same segment.
// Two nil speakers match; nil never matches a non-nil speaker.
func SameSpeaker(a, b *Speaker) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SpeakerUnassigned:
		return a.Index == b.Index
	case SpeakerAssigned:
		return a.ID == b.ID
	default:
		return false
	}
}

// DisplayName is the label shown next to a segment.
func (s *Speaker) DisplayName() string {
	if s == nil {
		return "Unknown"
	}
	switch s.Kind {
	case SpeakerAssigned:
		if s.Label != "" {
			return s.Label
		}
		return s.ID
	case SpeakerUnassigned:
		return fmt.Sprintf("Speaker %d", s.Index+1)
	default:
		return "Unknown"
	}
}

func (s *Speaker) validate() error {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case SpeakerUnassigned:
		if s.Index < 0 {
			return fmt.Errorf("%w: negative speaker index %d", ErrInvalidWord, s.Index)
		}
		if s.ID != "" || s.Label != "" {
			return fmt.Errorf("%w: unassigned speaker carries participant fields", ErrInvalidWord)
		}
	case SpeakerAssigned:
		if s.ID == "" {
			return fmt.Errorf("%w: assigned speaker without id", ErrInvalidWord)
		}
		if s.Index != 0 {
			return fmt.Errorf("%w: assigned speaker carries an index", ErrInvalidWord)
		}
	default:
		return fmt.Errorf("%w: unknown speaker kind %q", ErrInvalidWord, s.Kind)
	}
	return nil
}

// Word is one transcribed token.
type Word struct {
	Text       string   `json:"text"`
	Speaker    *Speaker `json:"speaker,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	StartMS    *int64   `json:"start_ms,omitempty"`
	EndMS      *int64   `json:"end_ms,omitempty"`
}

// Validate checks the invariants of a committed word.
func (w Word) Validate() error {
	if strings.TrimSpace(w.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidWord)
	}
	if w.Confidence != nil && (*w.Confidence < 0 || *w.Confidence > 1) {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidWord, *w.Confidence)
	}
	if w.StartMS != nil && *w.StartMS < 0 {
		return fmt.Errorf("%w: negative start_ms", ErrInvalidWord)
	}
	if w.EndMS != nil && *w.EndMS < 0 {
		return fmt.Errorf("%w: negative end_ms", ErrInvalidWord)
	}
	if w.StartMS != nil && w.EndMS != nil && *w.EndMS < *w.StartMS {
		return fmt.Errorf("%w: end_ms %d before start_ms %d", ErrInvalidWord, *w.EndMS, *w.StartMS)
	}
	return w.Speaker.validate()
}

// Ms returns a pointer to a millisecond value. Convenience for building words.
func Ms(v int64) *int64 { return &v }

// Float returns a pointer to a float value.
func Float(v float64) *float64 { return &v }
