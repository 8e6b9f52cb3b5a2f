package compose

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mumail/internal/model"
)

var testNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func testEnvelope() *model.Envelope {
	return &model.Envelope{
		Docid:     42,
		MessageID: "abc123@example.com",
		Subject:   "Lunch?",
		From:      []model.Address{{Name: "Alice", Email: "alice@example.com"}},
		To: []model.Address{
			{Email: "me@example.com"},
			{Name: "Bob", Email: "bob@example.com"},
		},
		Date: time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
		Path: "/home/me/Maildir/Inbox/cur/1:2,S",
	}
}

func TestRenderNew(t *testing.T) {
	got := New().Render("me@example.com", testNow)
	assert.Equal(t,
		"From: me@example.com\nTo: \nSubject: \nDate: Sat, 09 Mar 2024 14:30:00 +0000\n\n",
		got)
}

func TestNewTo(t *testing.T) {
	d := NewTo("a@x.org, b@y.org", "Hello")
	assert.Equal(t, []model.Address{{Email: "a@x.org"}, {Email: "b@y.org"}}, d.To)
	assert.Contains(t, d.Render("me@example.com", testNow), "To: a@x.org, b@y.org\nSubject: Hello\n")
}

func TestReply(t *testing.T) {
	d := Reply(testEnvelope(), "see you at noon\n\nA.", false)
	assert.Equal(t, KindReply, d.Kind)
	assert.Equal(t, "Re: Lunch?", d.Subject)
	assert.Equal(t, "<abc123@example.com>", d.InReplyTo)
	assert.Equal(t, []string{"<abc123@example.com>"}, d.References)
	assert.Equal(t, "> see you at noon\n>\n> A.", d.Body)

	out := d.Render("me@example.com", testNow)
	assert.Contains(t, out, "To: Alice <alice@example.com>\n")
	assert.Contains(t, out, "In-Reply-To: <abc123@example.com>\n")
	assert.Contains(t, out, "References: <abc123@example.com>\n\n> see you at noon")
	assert.NotContains(t, out, "Cc:")
}

func TestReplyKeepsExistingPrefix(t *testing.T) {
	env := testEnvelope()
	env.Subject = "RE: Lunch?"
	assert.Equal(t, "RE: Lunch?", Reply(env, "", false).Subject)
}

func TestReplyAllDropsSelf(t *testing.T) {
	d := Reply(testEnvelope(), "", true)
	assert.Equal(t, KindReplyAll, d.Kind)

	out := d.Render("Me <ME@example.com>", testNow)
	assert.Contains(t, out, "To: Alice <alice@example.com>, Bob <bob@example.com>\n")
	assert.NotContains(t, out, "ME@example.com>,")
	assert.NotContains(t, out, "Cc:")
}

func TestForward(t *testing.T) {
	d := Forward(testEnvelope(), "original text")
	assert.Equal(t, "Fwd: Lunch?", d.Subject)
	assert.Empty(t, d.To)
	assert.Empty(t, d.InReplyTo)
	assert.True(t, strings.HasPrefix(d.Body, "---------- Forwarded message ----------\n"))
	assert.Contains(t, d.Body, "From: Alice <alice@example.com>\n")
	assert.Contains(t, d.Body, "Date: Fri, Mar 08, 2024 at 12:00\n")
	assert.True(t, strings.HasSuffix(d.Body, "Subject: Lunch?\n\noriginal text"))
}

func TestWriteTemp(t *testing.T) {
	path, err := New().WriteTemp("me@example.com")
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "From: me@example.com\n"))
	assert.False(t, Modified(path, time.Now().Add(time.Minute)))
}

func TestEditorCommand(t *testing.T) {
	cmd, err := EditorCommand(`nvim -c "set tw=72"`, "/tmp/x.eml")
	require.NoError(t, err)
	assert.Equal(t, []string{"nvim", "-c", "set tw=72", "/tmp/x.eml"}, cmd.Args)

	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano")
	cmd, err = EditorCommand("", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"nano", "f"}, cmd.Args)

	_, err = EditorCommand(`"unterminated`, "f")
	assert.Error(t, err)
}
