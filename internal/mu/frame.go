package mu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/nhle/mumail/internal/sexp"
)

const (
	frameStart = 0xfe
	frameSep   = 0xff

	readChunk = 32 * 1024
)

// Frame is one decoded protocol unit.
type Frame struct {
	Value sexp.Value
	// Consumed counts bytes from the start of the buffer through the end of
	// the payload, including any noise before the start marker.
	Consumed int
}

// DecodeFrame extracts the first complete frame from buf. It returns
// ok=false with a nil error when buf does not hold a complete frame yet.
func DecodeFrame(buf []byte) (Frame, bool, error) {
	start := bytes.IndexByte(buf, frameStart)
	if start < 0 {
		return Frame{}, false, nil
	}
	rel := bytes.IndexByte(buf[start+1:], frameSep)
	if rel < 0 {
		return Frame{}, false, nil
	}
	sep := start + 1 + rel

	lenField := buf[start+1 : sep]
	if !utf8.Valid(lenField) {
		return Frame{}, false, &ParseError{What: "frame length", Err: errors.New("invalid utf-8")}
	}
	length, err := strconv.ParseUint(string(lenField), 16, 63)
	if err != nil {
		return Frame{}, false, &ParseError{What: "frame length", Err: err}
	}

	dataStart := sep + 1
	if uint64(len(buf)-dataStart) < length {
		return Frame{}, false, nil
	}
	dataEnd := dataStart + int(length)

	payload := buf[dataStart:dataEnd]
	if !utf8.Valid(payload) {
		return Frame{}, false, &ParseError{What: "frame payload", Err: errors.New("invalid utf-8")}
	}
	v, err := sexp.Parse(string(payload))
	if err != nil {
		return Frame{}, false, &ParseError{What: "frame payload " + preview(payload), Err: err}
	}
	return Frame{Value: v, Consumed: dataEnd}, true, nil
}

// EncodeFrame wraps payload in the server's framing. The server never reads
// this format; it exists for tests and fakes that play the server side.
func EncodeFrame(payload string) []byte {
	hexLen := strconv.FormatInt(int64(len(payload)), 16)
	out := make([]byte, 0, len(payload)+len(hexLen)+2)
	out = append(out, frameStart)
	out = append(out, hexLen...)
	out = append(out, frameSep)
	out = append(out, payload...)
	return out
}

// FrameReader accumulates bytes from r and yields frames in order.
type FrameReader struct {
	r     io.Reader
	buf   []byte
	chunk []byte
}

// NewFrameReader returns a reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, chunk: make([]byte, readChunk)}
}

// Next blocks until a full frame is available. Bytes before the frame
// start marker are dropped along with the frame.
func (fr *FrameReader) Next() (sexp.Value, error) {
	for {
		frame, ok, err := DecodeFrame(fr.buf)
		if err != nil {
			return sexp.Value{}, err
		}
		if ok {
			fr.buf = fr.buf[frame.Consumed:]
			if len(fr.buf) == 0 {
				fr.buf = nil
			}
			return frame.Value, nil
		}

		n, err := fr.r.Read(fr.chunk)
		if n > 0 {
			fr.buf = append(fr.buf, fr.chunk[:n]...)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sexp.Value{}, fmt.Errorf("reading frame: %w", io.ErrUnexpectedEOF)
			}
			return sexp.Value{}, fmt.Errorf("reading frame: %w", err)
		}
	}
}

// Buffered returns the number of bytes held but not yet decoded.
func (fr *FrameReader) Buffered() int { return len(fr.buf) }

func preview(b []byte) string {
	const max = 120
	if len(b) > max {
		return strconv.Quote(string(b[:max]) + "...")
	}
	return strconv.Quote(string(b))
}
