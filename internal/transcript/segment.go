package transcript

import "strings"

// Segment is a maximal run of consecutive words with the same speaker.
type Segment struct {
	Speaker *Speaker `json:"speaker,omitempty"`
	Words   []Word   `json:"words"`
	StartMS *int64   `json:"start_ms,omitempty"`
	EndMS   *int64   `json:"end_ms,omitempty"`
}

// Text joins the segment's words with single spaces.
func (s Segment) Text() string {
	parts := make([]string, 0, len(s.Words))
	for _, w := range s.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// WordsToSegments run-length encodes words by speaker identity. The
// result is empty iff words is empty, and concatenating the segments'
// words reproduces the input order exactly.
func WordsToSegments(words []Word) []Segment {
	if len(words) == 0 {
		return nil
	}

	var segments []Segment
	var current Segment
	started := false

	for _, w := range words {
		if started && SameSpeaker(current.Speaker, w.Speaker) {
			current.Words = append(current.Words, w)
			current.EndMS = w.EndMS
			continue
		}
		if started {
			segments = append(segments, current)
		}
		current = Segment{
			Speaker: w.Speaker,
			Words:   []Word{w},
			StartMS: w.StartMS,
			EndMS:   w.EndMS,
		}
		started = true
	}
	segments = append(segments, current)

	return segments
}

// SegmentsToWords flattens segments back into a word stream.
func SegmentsToWords(segments []Segment) []Word {
	var n int
	for _, s := range segments {
		n += len(s.Words)
	}
	if n == 0 {
		return nil
	}
	words := make([]Word, 0, n)
	for _, s := range segments {
		words = append(words, s.Words...)
	}
	return words
}
