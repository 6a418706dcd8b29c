package astm

import "errors"

// Sentinel errors for the ASTM link layer.
var (
	// Framing errors.
	ErrFrameOverflow    = errors.New("astm: receive buffer overflow")
	ErrMalformedFrame   = errors.New("astm: malformed frame")
	ErrChecksumMismatch = errors.New("astm: frame checksum mismatch")
	ErrBadFrameNumber   = errors.New("astm: invalid frame number")

	// Send-side errors.
	ErrSendAborted = errors.New("astm: send aborted")
	ErrAckTimeout  = errors.New("astm: timeout waiting for ACK")

	// Session errors.
	ErrSessionBusy     = errors.New("astm: session busy")
	ErrSessionClosed   = errors.New("astm: session closed")
	ErrTransportClosed = errors.New("astm: transport closed")
	ErrQueueFull       = errors.New("astm: outbound queue full")
)
