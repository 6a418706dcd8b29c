// Package transport provides the byte-oriented duplex links an ASTM
// session runs over: a TCP stream in either listening or originating
// role, and an RS-232 serial port.
//
// All links present the same contract: reliable, in-order byte streams
// with no message boundaries, plus read deadlines so the protocol loop
// can poll without blocking forever.
package transport

import (
	"io"
	"time"
)

// Transport is the byte-oriented link between the session and the
// analyzer. net.Conn satisfies it directly; serial ports are adapted.
type Transport interface {
	io.ReadWriteCloser

	// SetReadDeadline sets the deadline for future Read calls. A zero
	// value means Read will not time out.
	SetReadDeadline(t time.Time) error
}

// timeoutError is returned by transports that report timeouts as zero-byte
// reads (serial ports) to normalize them into net.Error timeouts.
type timeoutError struct{}

func (timeoutError) Error() string   { return "transport: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrReadTimeout is the normalized timeout error. It satisfies
// net.Error with Timeout() == true.
var ErrReadTimeout error = timeoutError{}
