package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestLayoutSplit(t *testing.T) {
	wide := NewLayout(120, 40)
	assert.True(t, wide.HasPreview())
	assert.Equal(t, 54, wide.ListWidth())
	assert.Equal(t, 66, wide.PreviewWidth())
	assert.Equal(t, 38, wide.ContentHeight())

	narrow := NewLayout(80, 24)
	assert.False(t, narrow.HasPreview())
	assert.Equal(t, 80, narrow.ListWidth())
	assert.Zero(t, narrow.PreviewWidth())
	assert.Equal(t, "list", narrow.RenderSplit("list", "preview"))
}

func TestLayoutContentHeightNeverNegative(t *testing.T) {
	assert.Zero(t, NewLayout(10, 1).ContentHeight())
}

func TestRenderBarsFillWidth(t *testing.T) {
	l := NewLayout(60, 10)
	assert.Equal(t, 60, lipgloss.Width(l.RenderHeader("mumail", "work")))
	bar := l.RenderStatusBar("archived 1", false)
	assert.Equal(t, 60, lipgloss.Width(bar))
	assert.True(t, strings.Contains(bar, "archived 1"))
}
