// Package editor holds the editable projection of a transcript: a document
// of speaker blocks containing word nodes, the word-splitting input
// behaviours, and an in-memory surface that implements them.
package editor

import (
	"strings"

	"github.com/jwulff/steno/notes/internal/transcript"
)

// NodeType names a block or inline node kind.
type NodeType string

const (
	TypeDoc     NodeType = "doc"
	TypeSpeaker NodeType = "speaker"
	TypeWord    NodeType = "word"
)

// Document is an ordered list of blocks. Blocks and nodes of unknown type
// are carried through edits and ignored when extracting words.
type Document struct {
	Type    NodeType `json:"type"`
	Content []Block  `json:"content"`
}

// Block is one speaker block; it maps 1:1 to a transcript.Segment.
type Block struct {
	Type    NodeType     `json:"type"`
	Attrs   SpeakerAttrs `json:"attrs"`
	Content []Node       `json:"content,omitempty"`
}

// SpeakerAttrs is the block-level speaker metadata.
type SpeakerAttrs struct {
	SpeakerIndex *int   `json:"speaker-index"`
	SpeakerID    string `json:"speaker-id,omitempty"`
	SpeakerLabel string `json:"speaker-label,omitempty"`
}

// Node is an inline node. Word nodes hold exactly one word's text.
type Node struct {
	Type  NodeType  `json:"type"`
	Text  string    `json:"text"`
	Attrs WordAttrs `json:"attrs"`
}

// WordAttrs carries a word's timing and confidence. SpeakerLabel is set
// only when the word's participant label differs from its block's.
type WordAttrs struct {
	StartMS      *int64   `json:"start_ms,omitempty"`
	EndMS        *int64   `json:"end_ms,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	SpeakerLabel *string  `json:"speaker-label,omitempty"`
}

// AttrsFor encodes a speaker as block attributes.
func AttrsFor(s *transcript.Speaker) SpeakerAttrs {
	if s == nil {
		return SpeakerAttrs{}
	}
	switch s.Kind {
	case transcript.SpeakerUnassigned:
		idx := s.Index
		return SpeakerAttrs{SpeakerIndex: &idx}
	case transcript.SpeakerAssigned:
		return SpeakerAttrs{SpeakerID: s.ID, SpeakerLabel: s.Label}
	default:
		return SpeakerAttrs{}
	}
}

// Speaker decodes block attributes. A speaker id wins over an index.
func (a SpeakerAttrs) Speaker() *transcript.Speaker {
	switch {
	case a.SpeakerID != "":
		return transcript.Assigned(a.SpeakerID, a.SpeakerLabel)
	case a.SpeakerIndex != nil:
		return transcript.Unassigned(*a.SpeakerIndex)
	default:
		return nil
	}
}

// FromSegments builds a document with one speaker block per segment.
func FromSegments(segments []transcript.Segment) Document {
	doc := Document{Type: TypeDoc}
	for _, seg := range segments {
		block := Block{
			Type:    TypeSpeaker,
			Attrs:   AttrsFor(seg.Speaker),
			Content: make([]Node, 0, len(seg.Words)),
		}
		for _, w := range seg.Words {
			block.Content = append(block.Content, Node{
				Type: TypeWord,
				Text: w.Text,
				Attrs: WordAttrs{
					StartMS:      cloneInt(w.StartMS),
					EndMS:        cloneInt(w.EndMS),
					Confidence:   cloneFloat(w.Confidence),
					SpeakerLabel: labelOverride(block.Attrs.SpeakerLabel, w.Speaker),
				},
			})
		}
		doc.Content = append(doc.Content, block)
	}
	return doc
}

// FromWords is FromSegments(transcript.WordsToSegments(words)).
func FromWords(words []transcript.Word) Document {
	return FromSegments(transcript.WordsToSegments(words))
}

// Words flattens the document back into a word stream. Unknown block and
// node types are skipped, as are blank word nodes (caret placeholders).
func (d Document) Words() []transcript.Word {
	var words []transcript.Word
	for _, block := range d.Content {
		if block.Type != TypeSpeaker {
			continue
		}
		speaker := block.Attrs.Speaker()
		for _, n := range block.Content {
			if n.Type != TypeWord || strings.TrimSpace(n.Text) == "" {
				continue
			}
			spk := speaker
			if n.Attrs.SpeakerLabel != nil && speaker != nil && speaker.Kind == transcript.SpeakerAssigned {
				spk = transcript.Assigned(speaker.ID, *n.Attrs.SpeakerLabel)
			}
			words = append(words, transcript.Word{
				Text:       n.Text,
				Speaker:    spk,
				Confidence: cloneFloat(n.Attrs.Confidence),
				StartMS:    cloneInt(n.Attrs.StartMS),
				EndMS:      cloneInt(n.Attrs.EndMS),
			})
		}
	}
	return words
}

// WordCount counts word nodes, including empty ones.
func (d Document) WordCount() int {
	var n int
	for _, block := range d.Content {
		for _, node := range block.Content {
			if node.Type == TypeWord {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy of the block and node slices.
func (d Document) Clone() Document {
	out := Document{Type: d.Type, Content: make([]Block, len(d.Content))}
	for i, b := range d.Content {
		b.Content = append([]Node(nil), b.Content...)
		out.Content[i] = b
	}
	return out
}

// labelOverride returns the label s carries when it is a participant whose
// label differs from the block's, and nil otherwise.
func labelOverride(blockLabel string, s *transcript.Speaker) *string {
	if s == nil || s.Kind != transcript.SpeakerAssigned || s.Label == blockLabel {
		return nil
	}
	label := s.Label
	return &label
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
