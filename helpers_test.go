package snapframe

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"sync"
	"testing"
)

var testMaskKey = [4]byte{0xA1, 0x07, 0x5C, 0x33}

// clientFrame encodes a masked frame the way a client sends it.
func clientFrame(fin bool, opcode byte, payload []byte) []byte {
	b0 := opcode & 0x0F
	if fin {
		b0 |= 0x80
	}
	b := []byte{b0}

	n := len(payload)
	switch {
	case n <= 125:
		b = append(b, 0x80|byte(n))
	case n <= 0xFFFF:
		b = append(b, 0x80|126)
		b = binary.BigEndian.AppendUint16(b, uint16(n))
	default:
		b = append(b, 0x80|127)
		b = binary.BigEndian.AppendUint64(b, uint64(n))
	}

	b = append(b, testMaskKey[:]...)
	for i, c := range payload {
		b = append(b, c^testMaskKey[i%4])
	}
	return b
}

func closePayload(code uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, code)
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// serverFrame is an unmasked frame read back from what the engine wrote.
type serverFrame struct {
	header  byte
	payload []byte
}

// parseServerFrames splits the engine's output after the handshake into frames.
func parseServerFrames(t *testing.T, raw []byte) []serverFrame {
	t.Helper()

	end := bytes.Index(raw, []byte("\r\n\r\n"))
	if end < 0 {
		t.Fatalf("handshake not found in %q", raw)
	}
	raw = raw[end+4:]

	var frames []serverFrame
	for len(raw) > 0 {
		if len(raw) < 2 {
			t.Fatalf("truncated frame header: %x", raw)
		}
		if raw[1]&0x80 != 0 {
			t.Fatalf("server frame has the mask bit set")
		}
		n := int(raw[1] & 0x7F)
		off := 2
		switch n {
		case 126:
			n = int(binary.BigEndian.Uint16(raw[2:4]))
			off = 4
		case 127:
			n = int(binary.BigEndian.Uint64(raw[2:10]))
			off = 10
		}
		if len(raw) < off+n {
			t.Fatalf("truncated frame payload")
		}
		frames = append(frames, serverFrame{header: raw[0], payload: raw[off : off+n]})
		raw = raw[off+n:]
	}
	return frames
}

// fakeTransport reads scripted client bytes and records what the engine writes.
type fakeTransport struct {
	io.Reader

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func newFakeTransport(r io.Reader) *fakeTransport {
	return &fakeTransport{Reader: r}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	return f.out.Write(p)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(f.out.Bytes())
}

func (f *fakeTransport) frames(t *testing.T) []serverFrame {
	return parseServerFrames(t, f.written())
}

func (f *fakeTransport) handshakeDone() bool {
	return strings.Contains(string(f.written()), "\r\n\r\n")
}
