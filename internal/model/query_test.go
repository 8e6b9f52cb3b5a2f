package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "maildir:/Inbox", BuildQuery("/Inbox", Filters{}))
	assert.Equal(t, `maildir:"/All Mail" AND flag:unread`, BuildQuery("/All Mail", Filters{Unread: true}))
	assert.Equal(t,
		"from:alice AND flag:unread AND flag:flagged AND NOT flag:replied",
		BuildQuery("from:alice", Filters{Unread: true, Flagged: true, NeedsReply: true}))
}

func TestFiltersString(t *testing.T) {
	assert.Equal(t, "", Filters{}.String())
	assert.False(t, Filters{}.Active())
	assert.Equal(t, "unread+needs-reply", Filters{Unread: true, NeedsReply: true}.String())
}

func TestThreadQuery(t *testing.T) {
	assert.Equal(t, "msgid:abc@x", ThreadQuery("<abc@x>"))
}

func TestShouldSearch(t *testing.T) {
	cases := map[string]bool{
		"":                  false,
		"ab":                false,
		"abc":               true,
		"from:da":           false,
		"from:dan":          true,
		"FROM:dan":          true,
		"from:danny to:da":  false,
		"from:danny to:dan": true,
		"hello world":       true,
		"hello ab":          false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ShouldSearch(in), "%q", in)
	}
}

func TestScanMaildirFolders(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"Inbox", "Archive", "Lists/go-nuts"} {
		for _, sub := range []string{"cur", "new", "tmp"} {
			require.NoError(t, os.MkdirAll(filepath.Join(root, dir, sub), 0o755))
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))

	got := ScanMaildirFolders(root)
	assert.Equal(t, []string{"/Archive", "/Inbox", "/Lists/go-nuts"}, got)
}

func TestUndoStack(t *testing.T) {
	s := NewUndoStack(2)
	s.Push(UndoEntry{Docid: 1})
	s.Push(UndoEntry{Docid: 2})
	s.Push(UndoEntry{Docid: 3})
	assert.Equal(t, 2, s.Len())

	e, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), e.Docid)
	e, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(2), e.Docid)
	_, ok = s.Pop()
	assert.False(t, ok)

	s.Push(UndoEntry{Docid: 4})
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestUndoStackPopBatch(t *testing.T) {
	s := NewUndoStack(10)
	s.Push(UndoEntry{Docid: 1})
	s.Push(UndoEntry{Docid: 2, Batch: 7})
	s.Push(UndoEntry{Docid: 3, Batch: 7})
	s.Push(UndoEntry{Docid: 4})

	got := s.PopBatch()
	require.Len(t, got, 1)
	assert.Equal(t, uint32(4), got[0].Docid)

	got = s.PopBatch()
	require.Len(t, got, 2)
	assert.Equal(t, uint32(3), got[0].Docid)
	assert.Equal(t, uint32(2), got[1].Docid)

	got = s.PopBatch()
	require.Len(t, got, 1)
	assert.Equal(t, uint32(1), got[0].Docid)
	assert.Nil(t, s.PopBatch())
}
