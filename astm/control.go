package astm

// ASTM E1394 / LIS2-A2 link-layer control bytes.
//
// These single-byte control characters drive the low-level handshake
// between the analyzer and the host.
const (
	// STX marks the start of a data frame.
	STX byte = 0x02

	// ETX marks the end of a final data frame.
	ETX byte = 0x03

	// EOT ends a transfer; all records between ENQ and EOT form one message.
	EOT byte = 0x04

	// ENQ requests line control to start a transfer.
	ENQ byte = 0x05

	// ACK acknowledges correct reception of a handshake byte or frame.
	ACK byte = 0x06

	// CR terminates a record and precedes ETX inside a frame.
	CR byte = 0x0D

	// LF follows the checksum CR and closes the frame envelope.
	LF byte = 0x0A

	// NAK rejects a handshake byte or a corrupt frame.
	NAK byte = 0x15

	// ETB marks the end of an intermediate frame in strict ASTM. The
	// instruments this package targets only emit final frames, so ETB is
	// treated like ETX on receive and never sent.
	ETB byte = 0x17
)

// TokenKind identifies a link-layer token produced by the Framer.
type TokenKind uint8

const (
	// TokenNone means no complete token is available yet.
	TokenNone TokenKind = iota
	// TokenENQ is a transfer request from the peer.
	TokenENQ
	// TokenACK is a positive acknowledgement.
	TokenACK
	// TokenNAK is a negative acknowledgement.
	TokenNAK
	// TokenSTX is a standalone start-of-text byte (network-ack dialect).
	TokenSTX
	// TokenETX is a standalone end-of-text byte (network-ack dialect).
	TokenETX
	// TokenEOT ends the current transfer.
	TokenEOT
	// TokenFrame is a complete data frame, STX through CR LF inclusive.
	TokenFrame
)

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenNone:
		return "none"
	case TokenENQ:
		return "ENQ"
	case TokenACK:
		return "ACK"
	case TokenNAK:
		return "NAK"
	case TokenSTX:
		return "STX"
	case TokenETX:
		return "ETX"
	case TokenEOT:
		return "EOT"
	case TokenFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Token is a tagged link-layer value emitted by the Framer.
//
// Only TokenFrame carries a payload: the raw frame bytes from STX through
// the trailing LF.
type Token struct {
	Kind TokenKind
	Data []byte
}
