package p3

// Wire framing bytes (spec GLOSSARY).
const (
	soh byte = 0x01
	eot byte = 0x04
	dle byte = 0x10
)

// DefaultMaxFrameSize bounds the rolling buffer per spec §4.B ("suggested
// 64 KiB"). A frame that grows past this without a closing EOT is dropped.
const DefaultMaxFrameSize = 64 * 1024

// Framer finds P3 frame boundaries in an arbitrary byte stream and reverses
// byte-stuffing, yielding unescaped frame payloads. It holds the single
// rolling input buffer described in spec §3 ("Ownership / lifecycle") and
// performs no I/O or suspension — Push is a pure transformation, matching
// spec §5's "no suspension occurs inside the framer or parser."
type Framer struct {
	buf     []byte
	maxSize int
}

// NewFramer returns a Framer with the default 64 KiB frame size cap.
func NewFramer() *Framer {
	return &Framer{maxSize: DefaultMaxFrameSize}
}

// NewFramerWithLimit returns a Framer with a caller-supplied cap, for tests
// that want to exercise the oversize path without 64 KiB of filler.
func NewFramerWithLimit(maxSize int) *Framer {
	return &Framer{maxSize: maxSize}
}

// Push appends data to the rolling buffer and extracts every complete frame
// now available. TCP delivers arbitrarily-chunked bytes and UDP delivers one
// datagram per call; the framer treats both identically (spec §4.B).
func (f *Framer) Push(data []byte) (frames [][]byte, diags []FrameError) {
	if len(data) > 0 {
		f.buf = append(f.buf, data...)
	}

	for {
		idx := findSOH(f.buf)
		if idx < 0 {
			f.retainDanglingDLE()
			return frames, diags
		}
		if idx > 0 {
			diags = append(diags, FrameError{Kind: FrameResync, Detail: "discarding bytes before next SOH"})
			f.buf = f.buf[idx:]
		}

		payload, consumed, status := decodeFrame(f.buf, f.maxSize)
		switch status {
		case decodeComplete:
			frames = append(frames, payload)
			f.buf = f.buf[consumed:]
		case decodeIncomplete:
			return frames, diags
		case decodeEmbeddedSOH:
			diags = append(diags, FrameError{Kind: FrameResync, Detail: "unescaped SOH inside candidate frame"})
			f.buf = f.buf[consumed:]
		case decodeOversize:
			diags = append(diags, FrameError{Kind: FrameOversize, Detail: "frame exceeded size limit without EOT"})
			f.buf = f.buf[consumed:]
		}
	}
}

// Close flushes any framing state pinned across the lifetime of a closed
// connection. A DLE byte left dangling at the tail of the buffer with no
// further input coming (the stream has ended) can never be resolved into an
// escaped byte, so it is reported as FrameDLEAtEOF and discarded rather than
// held forever (spec §7's dle_at_eof kind).
func (f *Framer) Close() []FrameError {
	if len(f.buf) == 0 || f.buf[len(f.buf)-1] != dle {
		f.buf = nil
		return nil
	}
	f.buf = nil
	return []FrameError{{Kind: FrameDLEAtEOF, Detail: "stream closed with a dangling DLE unresolved"}}
}

// retainDanglingDLE keeps a trailing DLE byte across the push boundary so a
// SOH arriving at the start of the next push is still correctly recognised
// as escaped data rather than a frame start (spec §4.B edge case).
func (f *Framer) retainDanglingDLE() {
	if len(f.buf) > 0 && f.buf[len(f.buf)-1] == dle {
		f.buf = f.buf[len(f.buf)-1:]
		return
	}
	f.buf = nil
}

// findSOH returns the index of the first SOH in b that is not immediately
// preceded by a DLE, or -1 if none is found.
func findSOH(b []byte) int {
	for i := 0; i < len(b); i++ {
		if b[i] != soh {
			continue
		}
		if i > 0 && b[i-1] == dle {
			continue
		}
		return i
	}
	return -1
}

type decodeStatus int

const (
	decodeIncomplete decodeStatus = iota
	decodeComplete
	decodeEmbeddedSOH
	decodeOversize
)

// decodeFrame attempts to unescape a candidate frame starting at b[0]==SOH.
// It returns the unescaped payload on decodeComplete, along with the number
// of input bytes consumed (including the leading SOH and trailing EOT); on
// every other status the caller uses consumed to know how far to advance
// before re-scanning, and the payload is nil.
func decodeFrame(b []byte, maxSize int) (payload []byte, consumed int, status decodeStatus) {
	out := make([]byte, 0, 64)
	i := 1 // skip the leading SOH
	for i < len(b) {
		if i > maxSize {
			return nil, i, decodeOversize
		}
		c := b[i]
		switch {
		case c == dle:
			if i+1 >= len(b) {
				// Dangling DLE at the buffer tail: wait for more bytes.
				return nil, 0, decodeIncomplete
			}
			out = append(out, b[i+1]^0x20)
			i += 2
		case c == eot:
			return out, i + 1, decodeComplete
		case c == soh:
			return nil, i, decodeEmbeddedSOH
		default:
			out = append(out, c)
			i++
		}
	}
	return nil, 0, decodeIncomplete
}
