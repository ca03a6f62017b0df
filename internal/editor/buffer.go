package editor

import (
	"unicode/utf8"

	"github.com/jwulff/steno/notes/internal/transcript"
)

// Buffer is an in-memory editing surface over a Document. Besides the
// Surface capabilities it provides the default editing behaviour (typing,
// backspace, caret movement) that runs when the splitter declines a key.
type Buffer struct {
	doc   Document
	sel   Selection
	dirty bool
}

// NewBuffer wraps a copy of doc with the caret at the start.
func NewBuffer(doc Document) *Buffer {
	doc = doc.Clone()
	if doc.Type == "" {
		doc.Type = TypeDoc
	}
	return &Buffer{doc: doc}
}

// Document returns a copy of the current document.
func (b *Buffer) Document() Document { return b.doc.Clone() }

// Words extracts the committed word stream.
func (b *Buffer) Words() []transcript.Word { return b.doc.Words() }

// Dirty reports whether the document changed since the last MarkClean.
func (b *Buffer) Dirty() bool { return b.dirty }

// MarkClean resets the dirty flag after the words were saved.
func (b *Buffer) MarkClean() { b.dirty = false }

// Selection implements Surface.
func (b *Buffer) Selection() Selection { return b.sel }

// SetSelection replaces the selection, clamping both ends.
func (b *Buffer) SetSelection(s Selection) {
	b.sel = Selection{Anchor: b.clamp(s.Anchor), Head: b.clamp(s.Head)}
}

// NodeAt implements Surface.
func (b *Buffer) NodeAt(p Pos) (Node, bool) {
	if p.Block < 0 || p.Block >= len(b.doc.Content) {
		return Node{}, false
	}
	block := b.doc.Content[p.Block]
	if block.Type != TypeSpeaker || p.Word < 0 || p.Word >= len(block.Content) {
		return Node{}, false
	}
	n := block.Content[p.Word]
	if n.Type != TypeWord || p.Offset < 0 || p.Offset > runeLen(n.Text) {
		return Node{}, false
	}
	return n, true
}

// InsertNodeAfter implements Surface.
func (b *Buffer) InsertNodeAfter(p Pos, n Node) Pos {
	if _, ok := b.NodeAt(p); !ok {
		end := b.InsertNode(p, n)
		return Pos{Block: end.Block, Word: end.Word}
	}
	block := &b.doc.Content[p.Block]
	block.Content = insertNodes(block.Content, p.Word+1, n)
	b.dirty = true
	return Pos{Block: p.Block, Word: p.Word + 1}
}

// InsertNode implements Surface. Inserting into an empty word node
// replaces it; inserting mid-word splits the word around n.
func (b *Buffer) InsertNode(p Pos, n Node) Pos {
	b.dirty = true
	if len(b.doc.Content) == 0 {
		b.doc.Content = []Block{{Type: TypeSpeaker}}
		p = Pos{}
	}
	p = b.clamp(p)
	block := &b.doc.Content[p.Block]
	idx := p.Word

	if idx < len(block.Content) && block.Content[idx].Type == TypeWord {
		cur := block.Content[idx]
		runes := []rune(cur.Text)
		switch {
		case len(runes) == 0:
			block.Content[idx] = n
			return Pos{Block: p.Block, Word: idx, Offset: runeLen(n.Text)}
		case p.Offset <= 0:
		case p.Offset >= len(runes):
			idx++
		default:
			left, right := splitWord(cur, p.Offset)
			block.Content[idx] = left
			block.Content = insertNodes(block.Content, idx+1, n, right)
			return Pos{Block: p.Block, Word: idx + 1, Offset: runeLen(n.Text)}
		}
	}

	block.Content = insertNodes(block.Content, idx, n)
	return Pos{Block: p.Block, Word: idx, Offset: runeLen(n.Text)}
}

// DeleteSelection implements Surface. Deleting inside one word keeps a
// single node; deleting across nodes keeps the surviving prefix and
// suffix as separate words and joins the last block into the first.
func (b *Buffer) DeleteSelection() Pos {
	if b.sel.Empty() {
		return b.sel.Head
	}
	from, to := b.sel.Range()
	from, to = b.clamp(from), b.clamp(to)
	b.dirty = true

	if from.Block == to.Block && from.Word == to.Word {
		if n, ok := b.NodeAt(from); ok {
			runes := []rune(n.Text)
			n.Text = string(runes[:from.Offset]) + string(runes[to.Offset:])
			b.doc.Content[from.Block].Content[from.Word] = n
		}
		b.sel = Caret(from)
		return from
	}

	before, _ := splitBlockAt(b.doc.Content[from.Block].Content, from)
	_, after := splitBlockAt(b.doc.Content[to.Block].Content, to)

	caret := Pos{Block: from.Block, Word: len(before)}
	if len(before) > 0 && before[len(before)-1].Type == TypeWord {
		last := before[len(before)-1]
		caret = Pos{Block: from.Block, Word: len(before) - 1, Offset: runeLen(last.Text)}
	}

	merged := b.doc.Content[from.Block]
	merged.Content = append(before, after...)

	blocks := make([]Block, 0, len(b.doc.Content)-(to.Block-from.Block))
	blocks = append(blocks, b.doc.Content[:from.Block]...)
	blocks = append(blocks, merged)
	blocks = append(blocks, b.doc.Content[to.Block+1:]...)
	b.doc.Content = blocks

	b.sel = Caret(caret)
	return caret
}

// MoveCaretTo implements Surface.
func (b *Buffer) MoveCaretTo(p Pos) { b.sel = Caret(b.clamp(p)) }

// InsertText types s at the caret, replacing any selection.
func (b *Buffer) InsertText(s string) {
	if s == "" {
		return
	}
	p := b.DeleteSelection()
	if n, ok := b.NodeAt(p); ok {
		runes := []rune(n.Text)
		n.Text = string(runes[:p.Offset]) + s + string(runes[p.Offset:])
		b.doc.Content[p.Block].Content[p.Word] = n
		b.dirty = true
		b.sel = Caret(Pos{Block: p.Block, Word: p.Word, Offset: p.Offset + runeLen(s)})
		return
	}
	b.MoveCaretTo(b.InsertNode(p, Node{Type: TypeWord, Text: s}))
}

// Backspace deletes the selection, or the rune before the caret. At the
// start of a word it joins the word to the previous one; at the start of
// a block it joins the block to the previous block.
func (b *Buffer) Backspace() {
	if !b.sel.Empty() {
		b.DeleteSelection()
		return
	}
	p := b.clamp(b.sel.Head)

	if n, ok := b.NodeAt(p); ok && p.Offset > 0 {
		runes := []rune(n.Text)
		n.Text = string(runes[:p.Offset-1]) + string(runes[p.Offset:])
		b.doc.Content[p.Block].Content[p.Word] = n
		b.dirty = true
		b.sel = Caret(Pos{Block: p.Block, Word: p.Word, Offset: p.Offset - 1})
		return
	}
	if len(b.doc.Content) == 0 {
		return
	}

	block := &b.doc.Content[p.Block]
	if p.Word > 0 {
		prev := block.Content[p.Word-1]
		if prev.Type != TypeWord {
			block.Content = removeNode(block.Content, p.Word-1)
			b.dirty = true
			b.sel = Caret(Pos{Block: p.Block, Word: p.Word - 1})
			return
		}
		caret := Pos{Block: p.Block, Word: p.Word - 1, Offset: runeLen(prev.Text)}
		if p.Word < len(block.Content) && block.Content[p.Word].Type == TypeWord {
			prev.Text += block.Content[p.Word].Text
			block.Content[p.Word-1] = prev
			block.Content = removeNode(block.Content, p.Word)
			b.dirty = true
		}
		b.sel = Caret(caret)
		return
	}
	if p.Block == 0 {
		return
	}

	prevBlock := &b.doc.Content[p.Block-1]
	caret := b.blockEnd(p.Block - 1)
	prevBlock.Content = append(prevBlock.Content, block.Content...)
	b.doc.Content = append(b.doc.Content[:p.Block], b.doc.Content[p.Block+1:]...)
	b.dirty = true
	b.sel = Caret(caret)
}

// MoveLeft moves the head one rune left; extend keeps the anchor.
func (b *Buffer) MoveLeft(extend bool) {
	p := b.clamp(b.sel.Head)
	switch {
	case p.Offset > 0:
		p.Offset--
	case p.Word > 0:
		p.Word--
		p.Offset = b.nodeLen(p.Block, p.Word)
	case p.Block > 0:
		p = b.blockEnd(p.Block - 1)
	}
	b.moveHead(p, extend)
}

// MoveRight moves the head one rune right; extend keeps the anchor.
func (b *Buffer) MoveRight(extend bool) {
	p := b.clamp(b.sel.Head)
	if len(b.doc.Content) == 0 {
		return
	}
	content := b.doc.Content[p.Block].Content
	switch {
	case p.Word < len(content) && p.Offset < b.nodeLen(p.Block, p.Word):
		p.Offset++
	case p.Word+1 < len(content):
		p.Word++
		p.Offset = 0
	case p.Block+1 < len(b.doc.Content):
		p = Pos{Block: p.Block + 1}
	}
	b.moveHead(p, extend)
}

// MoveUp moves the caret to the start of the previous block.
func (b *Buffer) MoveUp() {
	p := b.clamp(b.sel.Head)
	if p.Block > 0 {
		p = Pos{Block: p.Block - 1}
	} else {
		p = Pos{}
	}
	b.MoveCaretTo(p)
}

// MoveDown moves the caret to the start of the next block.
func (b *Buffer) MoveDown() {
	p := b.clamp(b.sel.Head)
	if p.Block+1 < len(b.doc.Content) {
		p = Pos{Block: p.Block + 1}
	} else {
		p = b.blockEnd(p.Block)
	}
	b.MoveCaretTo(p)
}

// AssignSpeaker rebinds a block to a speaker.
func (b *Buffer) AssignSpeaker(block int, s *transcript.Speaker) bool {
	if block < 0 || block >= len(b.doc.Content) || b.doc.Content[block].Type != TypeSpeaker {
		return false
	}
	b.doc.Content[block].Attrs = AttrsFor(s)
	for i := range b.doc.Content[block].Content {
		b.doc.Content[block].Content[i].Attrs.SpeakerLabel = nil
	}
	b.dirty = true
	return true
}

// AppendWords adds already-committed words at the end of the document,
// extending the last block when the speaker continues. The caret and the
// dirty flag are left alone.
func (b *Buffer) AppendWords(words []transcript.Word) {
	tail := FromWords(words).Content
	if len(tail) == 0 {
		return
	}
	if n := len(b.doc.Content); n > 0 {
		last := &b.doc.Content[n-1]
		if last.Type == TypeSpeaker && transcript.SameSpeaker(last.Attrs.Speaker(), tail[0].Attrs.Speaker()) {
			for _, n := range tail[0].Content {
				if n.Attrs.SpeakerLabel == nil {
					n.Attrs.SpeakerLabel = labelOverride(last.Attrs.SpeakerLabel, tail[0].Attrs.Speaker())
				}
				last.Content = append(last.Content, n)
			}
			tail = tail[1:]
		}
	}
	b.doc.Content = append(b.doc.Content, tail...)
}

// Normalize rebuilds the document from its words, dropping blank words
// and merging adjacent blocks that now share a speaker. Foreign nodes do
// not survive. The caret moves to the start of its block.
func (b *Buffer) Normalize() {
	block := b.sel.Head.Block
	b.doc = FromWords(b.doc.Words())
	b.MoveCaretTo(Pos{Block: block})
}

func (b *Buffer) moveHead(p Pos, extend bool) {
	if extend {
		b.sel.Head = p
		return
	}
	b.sel = Caret(p)
}

func (b *Buffer) blockEnd(block int) Pos {
	content := b.doc.Content[block].Content
	if len(content) == 0 {
		return Pos{Block: block}
	}
	last := len(content) - 1
	if content[last].Type != TypeWord {
		return Pos{Block: block, Word: len(content)}
	}
	return Pos{Block: block, Word: last, Offset: runeLen(content[last].Text)}
}

func (b *Buffer) nodeLen(block, word int) int {
	content := b.doc.Content[block].Content
	if word >= len(content) || content[word].Type != TypeWord {
		return 0
	}
	return runeLen(content[word].Text)
}

// clamp pulls p back inside the document.
func (b *Buffer) clamp(p Pos) Pos {
	if len(b.doc.Content) == 0 {
		return Pos{}
	}
	p.Block = clampInt(p.Block, 0, len(b.doc.Content)-1)
	content := b.doc.Content[p.Block].Content
	p.Word = clampInt(p.Word, 0, len(content))
	if p.Word < len(content) && content[p.Word].Type == TypeWord {
		p.Offset = clampInt(p.Offset, 0, runeLen(content[p.Word].Text))
	} else {
		p.Offset = 0
	}
	return p
}

// splitBlockAt divides a block's nodes at p, splitting a word mid-text.
// Both returned slices are fresh copies.
func splitBlockAt(content []Node, p Pos) (before, after []Node) {
	idx := clampInt(p.Word, 0, len(content))
	if idx < len(content) && content[idx].Type == TypeWord {
		n := content[idx]
		off := clampInt(p.Offset, 0, runeLen(n.Text))
		switch {
		case off == 0:
		case off == runeLen(n.Text):
			idx++
		default:
			left, right := splitWord(n, off)
			before = append(append(before, content[:idx]...), left)
			after = append(append(after, right), content[idx+1:]...)
			return before, after
		}
	}
	before = append(before, content[:idx]...)
	after = append(after, content[idx:]...)
	return before, after
}

// splitWord cuts a word node at a rune offset. The left half keeps the
// start time, the right half keeps the end time.
func splitWord(n Node, offset int) (left, right Node) {
	runes := []rune(n.Text)
	left = Node{Type: TypeWord, Text: string(runes[:offset]), Attrs: WordAttrs{
		StartMS:      n.Attrs.StartMS,
		Confidence:   n.Attrs.Confidence,
		SpeakerLabel: n.Attrs.SpeakerLabel,
	}}
	right = Node{Type: TypeWord, Text: string(runes[offset:]), Attrs: WordAttrs{
		EndMS:        n.Attrs.EndMS,
		Confidence:   n.Attrs.Confidence,
		SpeakerLabel: n.Attrs.SpeakerLabel,
	}}
	return left, right
}

func insertNodes(content []Node, idx int, nodes ...Node) []Node {
	out := make([]Node, 0, len(content)+len(nodes))
	out = append(out, content[:idx]...)
	out = append(out, nodes...)
	return append(out, content[idx:]...)
}

func removeNode(content []Node, idx int) []Node {
	out := make([]Node, 0, len(content)-1)
	out = append(out, content[:idx]...)
	return append(out, content[idx+1:]...)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
