package astm

import (
	"fmt"
)

// maxFramerBuffer caps the framer's accumulation buffer. A buffer that
// grows past this limit without closing is truncated and reported as an
// overflow; the session replies NAK and the framer resets.
const maxFramerBuffer = 64 * 1024

// Framer classifies an unbounded inbound byte stream into link-layer
// tokens. It holds a single growing buffer of the bytes seen since the
// last token boundary.
//
// Framer is NOT goroutine-safe. The session's protocol loop is its only
// caller, consistent with the half-duplex nature of the link.
type Framer struct {
	buf []byte
}

// NewFramer creates a Framer with an empty buffer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 256)}
}

// Push appends one byte to the framer and returns the token it completes,
// if any. Tokens are emitted in strict byte-arrival order.
//
// Classification rules, evaluated on every append:
//
//   - A single recognized control byte (ENQ, ACK, NAK, EOT, and standalone
//     ETX) is emitted as its token immediately.
//   - A buffer that starts with STX and ends with CR LF is emitted as a
//     TokenFrame carrying the full envelope.
//   - Stray ACK bytes observed while a data frame is open are silently
//     dropped: they arise from the peer acknowledging our intermediate
//     sends while our receive buffer is still open.
//
// On a malformed frame or buffer overflow, Push resets the buffer and
// returns an error; the caller replies NAK.
func (f *Framer) Push(b byte) (Token, error) {
	if len(f.buf) == 0 {
		switch b {
		case ENQ:
			return Token{Kind: TokenENQ}, nil
		case ACK:
			return Token{Kind: TokenACK}, nil
		case NAK:
			return Token{Kind: TokenNAK}, nil
		case EOT:
			return Token{Kind: TokenEOT}, nil
		case ETX:
			// ETX cannot begin a frame, so a leading ETX is always the
			// standalone control byte of the network-ack dialect.
			return Token{Kind: TokenETX}, nil
		}

		f.buf = append(f.buf, b)

		return Token{}, nil
	}

	inFrame := f.buf[0] == STX

	// A second STX right after an opening STX means the first one was a
	// standalone control byte; emit it and keep the new STX as the frame
	// opener.
	if inFrame && len(f.buf) == 1 && b == STX {
		return Token{Kind: TokenSTX}, nil
	}

	if inFrame && b == ACK {
		return Token{}, nil
	}

	f.buf = append(f.buf, b)

	if b == LF {
		return f.closeBuffer()
	}

	if len(f.buf) > maxFramerBuffer {
		f.Reset()

		return Token{}, ErrFrameOverflow
	}

	return Token{}, nil
}

// closeBuffer handles a buffer terminated by LF: either a complete data
// frame or a framing error.
func (f *Framer) closeBuffer() (Token, error) {
	buf := f.buf

	if len(buf) < 2 || buf[len(buf)-2] != CR {
		f.Reset()

		return Token{}, fmt.Errorf("%w: LF without preceding CR", ErrMalformedFrame)
	}

	if buf[0] != STX {
		f.Reset()

		return Token{}, fmt.Errorf("%w: frame does not start with STX", ErrMalformedFrame)
	}

	if len(buf) < minFrameLen || (buf[len(buf)-5] != ETX && buf[len(buf)-5] != ETB) {
		f.Reset()

		return Token{}, fmt.Errorf("%w: checksum block missing", ErrMalformedFrame)
	}

	frame := make([]byte, len(buf))
	copy(frame, buf)
	f.Reset()

	return Token{Kind: TokenFrame, Data: frame}, nil
}

// Reset discards any accumulated bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Pending returns the number of bytes accumulated since the last token
// boundary.
func (f *Framer) Pending() int {
	return len(f.buf)
}
