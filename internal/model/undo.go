package model

// UndoKind identifies what an UndoEntry reverses.
type UndoKind int

const (
	// UndoMove restores a message's maildir and flags.
	UndoMove UndoKind = iota
	// UndoDeleteSmartFolder recreates a deleted smart folder.
	UndoDeleteSmartFolder
)

// UndoEntry records the state before one action.
type UndoEntry struct {
	Kind        UndoKind
	Description string

	// Batch groups entries recorded by one user action, e.g. archiving a
	// whole conversation. Zero means the entry stands alone.
	Batch uint64

	// Docid is the id after the forward action, i.e. the one to use for the
	// reverse move.
	Docid       uint32
	MessageID   string
	PrevMaildir string
	PrevFlags   string

	Folder SmartFolder
}

// DefaultUndoDepth bounds the stack.
const DefaultUndoDepth = 100

// UndoStack is a bounded LIFO of reversible actions. The oldest entry is
// dropped once the bound is reached.
type UndoStack struct {
	entries []UndoEntry
	max     int
}

// NewUndoStack returns a stack holding at most max entries.
func NewUndoStack(max int) *UndoStack {
	if max <= 0 {
		max = DefaultUndoDepth
	}
	return &UndoStack{max: max}
}

// Push records an action.
func (s *UndoStack) Push(e UndoEntry) {
	if len(s.entries) == s.max {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, e)
}

// Pop removes and returns the most recent action.
func (s *UndoStack) Pop() (UndoEntry, bool) {
	if len(s.entries) == 0 {
		return UndoEntry{}, false
	}
	e := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return e, true
}

// PopBatch removes the most recent entry together with every entry below
// it that shares its non-zero batch, newest first.
func (s *UndoStack) PopBatch() []UndoEntry {
	top, ok := s.Pop()
	if !ok {
		return nil
	}
	out := []UndoEntry{top}
	if top.Batch == 0 {
		return out
	}
	for len(s.entries) > 0 && s.entries[len(s.entries)-1].Batch == top.Batch {
		e, _ := s.Pop()
		out = append(out, e)
	}
	return out
}

// Len returns the number of entries.
func (s *UndoStack) Len() int { return len(s.entries) }

// Clear drops everything, e.g. when switching accounts invalidates docids.
func (s *UndoStack) Clear() { s.entries = nil }
