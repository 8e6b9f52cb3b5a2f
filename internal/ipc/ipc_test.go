package ipc

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		in   string
		want Link
	}{
		{"mumail://message/abc@example.com", Link{Kind: LinkMessage, Target: "abc@example.com"}},
		{"mumail://thread/abc@example.com", Link{Kind: LinkThread, Target: "abc@example.com"}},
		{"mumail://search/from%3Aalice%20flag%3Aunread", Link{Kind: LinkSearch, Target: "from:alice flag:unread"}},
		{"mumail://compose?to=bob%40example.com&subject=Hi+there", Link{Kind: LinkCompose, To: "bob@example.com", Subject: "Hi there"}},
		{"mumail://compose", Link{Kind: LinkCompose}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseURLInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"http://message/abc",
		"mumail://message/",
		"mumail://thread/",
		"mumail://search/",
		"mumail://inbox/x",
	} {
		_, err := ParseURL(in)
		assert.ErrorIs(t, err, ErrInvalidLink, "%q", in)
	}
}

func TestLinkRoundTrip(t *testing.T) {
	links := []Link{
		MessageLink("<a.b@example.com>"),
		ThreadLink("x/y@host"),
		SearchLink(`subject:"quarterly report" AND flag:unread`),
		{Kind: LinkCompose, To: "a@b.c, d@e.f", Subject: "Re: 50% & more"},
	}
	for _, l := range links {
		got, err := ParseURL(l.String())
		require.NoError(t, err, l.String())
		assert.Equal(t, l, got)
	}
	assert.Equal(t, "mumail://message/a.b@example.com", links[0].String())
}

func TestCommandValidate(t *testing.T) {
	assert.NoError(t, Command{Cmd: CmdOpen, URL: "mumail://message/x"}.Validate())
	assert.Error(t, Command{Cmd: CmdOpen, URL: "nope"}.Validate())
	assert.NoError(t, Command{Cmd: CmdNavigate, Folder: "/Inbox"}.Validate())
	assert.Error(t, Command{Cmd: CmdNavigate}.Validate())
	assert.NoError(t, Command{Cmd: CmdQuit}.Validate())
	assert.Error(t, Command{Cmd: "reboot"}.Validate())
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/mumail.sock", SocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Contains(t, SocketPath(), "/tmp/mumail-")
}

// shortSocket keeps the path under the unix socket length limit.
func shortSocket(t *testing.T) string {
	dir, err := os.MkdirTemp("", "mm")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestServerDeliversCommands(t *testing.T) {
	path := shortSocket(t)
	srv, err := Listen(context.Background(), path)
	require.NoError(t, err)
	defer srv.Close()

	msgs := make(chan CommandMsg, 1)
	go func() {
		if m, ok := srv.Wait()().(CommandMsg); ok {
			msgs <- m
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, Send(ctx, path, Command{Cmd: CmdNavigate, Folder: "/Archive"}))

	select {
	case m := <-msgs:
		assert.Equal(t, Command{Cmd: CmdNavigate, Folder: "/Archive"}, m.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}
}

func TestServerRejectsBadCommands(t *testing.T) {
	path := shortSocket(t)
	srv, err := Listen(context.Background(), path)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = Send(ctx, path, Command{Cmd: CmdOpen, URL: "http://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mumail link")

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"ok":false`)
	assert.Contains(t, line, "malformed command")
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := shortSocket(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	srv, err := Listen(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket removed on close")
}

func TestListenRefusesLiveSocket(t *testing.T) {
	path := shortSocket(t)
	srv, err := Listen(context.Background(), path)
	require.NoError(t, err)
	defer srv.Close()

	_, err = Listen(context.Background(), path)
	assert.Error(t, err)
}

func TestSendWithoutInstance(t *testing.T) {
	err := Send(context.Background(), shortSocket(t), Command{Cmd: CmdQuit})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestServerDropsConnectionWhenReplyFails(t *testing.T) {
	path := shortSocket(t)
	srv, err := Listen(context.Background(), path)
	require.NoError(t, err)
	defer srv.Close()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	// With our read side shut, every reply the server writes fails.
	require.NoError(t, conn.(*net.UnixConn).CloseRead())

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := conn.Write([]byte("not json\n"))
		return err != nil
	}, 2*time.Second, 20*time.Millisecond, "server kept reading after a failed reply")
}
