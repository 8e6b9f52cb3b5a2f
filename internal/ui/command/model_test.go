package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want CommandMsg
	}{
		{"search from:alice", CommandMsg{Name: "search", Arg: "from:alice"}},
		{":folder  /Archive ", CommandMsg{Name: "folder", Arg: "/Archive"}},
		{"rei", CommandMsg{Name: "reindex"}},
		{"Q", CommandMsg{Name: "quit"}},
		// "s" is both search and sync.
		{"s foo", CommandMsg{Name: "s", Arg: "foo"}},
		{"launch", CommandMsg{Name: "launch"}},
		{"open mumail://search/x", CommandMsg{Name: "open", Arg: "mumail://search/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.line))
		})
	}
}

func typeLine(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 10)
	m = typeLine(m, "sync")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{Name: "sync"}, cmd())

	// History recall.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "sync", m.input.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Empty(t, m.input.Value())
}

func TestEnterOnEmptyInput(t *testing.T) {
	m := New(80, 10)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}
