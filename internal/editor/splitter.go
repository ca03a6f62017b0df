package editor

import "strings"

// Pos addresses a caret inside a document: a block, a node index within
// the block, and a rune offset within that node's text. Word == len(block
// content) is the boundary after the last node.
type Pos struct {
	Block  int
	Word   int
	Offset int
}

// Before reports whether p sorts before q in document order.
func (p Pos) Before(q Pos) bool {
	if p.Block != q.Block {
		return p.Block < q.Block
	}
	if p.Word != q.Word {
		return p.Word < q.Word
	}
	return p.Offset < q.Offset
}

// Selection is an anchor/head pair. It is collapsed when both are equal.
type Selection struct {
	Anchor Pos
	Head   Pos
}

// Caret returns a collapsed selection at p.
func Caret(p Pos) Selection { return Selection{Anchor: p, Head: p} }

// Empty reports whether the selection is collapsed.
func (s Selection) Empty() bool { return s.Anchor == s.Head }

// Range returns the selection endpoints in document order.
func (s Selection) Range() (from, to Pos) {
	if s.Head.Before(s.Anchor) {
		return s.Head, s.Anchor
	}
	return s.Anchor, s.Head
}

// Surface is the capability set the word splitter needs from a host
// editor. Buffer implements it; other editing engines can adapt to it.
type Surface interface {
	// Selection returns the current selection.
	Selection() Selection
	// NodeAt returns the word node directly containing p.
	NodeAt(p Pos) (Node, bool)
	// InsertNodeAfter inserts n right after the word node containing p and
	// returns the position at the start of n.
	InsertNodeAfter(p Pos, n Node) Pos
	// InsertNode inserts n at p and returns the position at the end of n.
	InsertNode(p Pos, n Node) Pos
	// DeleteSelection removes the selected content and returns the
	// collapsed insertion point.
	DeleteSelection() Pos
	// MoveCaretTo collapses the selection at p.
	MoveCaretTo(p Pos)
}

// HandleSpace opens a new empty word after the caret's word. It reports
// whether the key was consumed; false means the host default should run.
func HandleSpace(s Surface) bool {
	sel := s.Selection()
	if !sel.Empty() {
		return false
	}
	node, ok := s.NodeAt(sel.Head)
	if !ok {
		return false
	}
	// Swallow the space so repeated presses never create blank words.
	if node.Text == "" {
		return true
	}
	next := s.InsertNodeAfter(sel.Head, Node{Type: TypeWord})
	s.MoveCaretTo(next)
	return true
}

// HandlePaste splits multi-word pasted text into one word node per token.
// Single tokens and empty payloads are left to the host default.
func HandlePaste(s Surface, text string) bool {
	if text == "" {
		return false
	}
	tokens := strings.Fields(text)
	if len(tokens) <= 1 {
		return false
	}

	at := s.DeleteSelection()
	for _, tok := range tokens {
		at = s.InsertNode(at, Node{Type: TypeWord, Text: tok})
	}
	s.MoveCaretTo(at)
	return true
}
