package mu

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mumail/internal/sexp"
)

func TestDecodeFrameRoundTrip(t *testing.T) {
	payloads := []string{
		`(:pong "mu")`,
		`(:found 3 :query "" :maxnum 3)`,
		`(:headers ((:docid 1 :subject "Grüße aus Köln")))`,
		`(:erase t)`,
	}
	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			want, err := sexp.Parse(p)
			require.NoError(t, err)

			encoded := EncodeFrame(p)
			frame, ok, err := DecodeFrame(encoded)
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, want.Equal(frame.Value))
			assert.Equal(t, len(encoded), frame.Consumed)
		})
	}
}

func TestDecodeFramePartialIsNotAnError(t *testing.T) {
	encoded := EncodeFrame(`(:headers ((:docid 42 :subject "Hello World")))`)
	for n := 0; n < len(encoded); n++ {
		_, ok, err := DecodeFrame(encoded[:n])
		require.NoError(t, err, "prefix %d", n)
		assert.False(t, ok, "prefix %d", n)
	}
}

func TestDecodeFrameSkipsLeadingNoise(t *testing.T) {
	noise := []byte(";; welcome to mu\n")
	encoded := EncodeFrame(`(:pong "mu")`)
	buf := append(append([]byte{}, noise...), encoded...)
	buf = append(buf, EncodeFrame("(:erase t)")...)

	frame, ok, err := DecodeFrame(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, IsPong(frame.Value))
	assert.Equal(t, len(noise)+len(encoded), frame.Consumed)
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"bad hex", []byte("\xfezz\xff(ping)")},
		{"empty length", []byte("\xfe\xff()")},
		{"non-utf8 length", []byte("\xfe\xc3\x28\xff()")},
		{"non-utf8 payload", append([]byte("\xfe2\xff"), 0xc3, 0x28)},
		{"bad sexp", []byte("\xfe3\xff(a(")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := DecodeFrame(tt.buf)
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, IsParseError(err))
		})
	}
}

func TestFrameReaderByteAtATime(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("mu server banner\n")
	stream.Write(EncodeFrame(`(:pong "mu")`))
	stream.Write(EncodeFrame(`(:erase t)`))
	stream.WriteString("junk")
	stream.Write(EncodeFrame(`(:found 0)`))

	fr := NewFrameReader(iotest.OneByteReader(&stream))

	v, err := fr.Next()
	require.NoError(t, err)
	assert.True(t, IsPong(v))

	v, err = fr.Next()
	require.NoError(t, err)
	assert.True(t, IsErase(v))

	v, err = fr.Next()
	require.NoError(t, err)
	n, ok := Found(v)
	assert.True(t, ok)
	assert.Zero(t, n)
	assert.Zero(t, fr.Buffered())

	_, err = fr.Next()
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestFrameReaderSeveralFramesInOneRead(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 3; i++ {
		stream.Write(EncodeFrame(`(:erase t)`))
	}
	fr := NewFrameReader(&stream)
	for i := 0; i < 3; i++ {
		v, err := fr.Next()
		require.NoError(t, err)
		assert.True(t, IsErase(v))
	}
}

func TestFrameReaderPropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	fr := NewFrameReader(iotest.ErrReader(boom))
	_, err := fr.Next()
	assert.ErrorIs(t, err, boom)
}
