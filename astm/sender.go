package astm

import (
	"fmt"
	"time"
)

// sendMessage drives the ACK-gated outbound handshake for one pre-built
// message.
//
// Line control is established with ENQ, then each record is framed and
// sent, each transmission unit awaiting a discrete ACK. Under the
// network-ack dialect the standalone STX and ETX control bytes are also
// sent and acknowledged around the frame sequence. The transfer always
// ends with a single EOT: after the last ACK on success, or immediately
// on any failure (timeout, NAK, or unexpected token).
//
// sendMessage runs inside the protocol loop and therefore owns the
// transport for its whole duration; the session state is Sending.
func (s *Session) sendMessage(records []string) error {
	if err := s.sendAndAwaitAck([]byte{ENQ}); err != nil {
		return s.abortSend(err)
	}

	if s.cfg.networkAck {
		if err := s.sendAndAwaitAck([]byte{STX}); err != nil {
			return s.abortSend(err)
		}
	}

	n := 1
	for _, record := range records {
		frame := BuildFrame(n, []byte(record))

		if err := s.sendAndAwaitAck(frame); err != nil {
			return s.abortSend(err)
		}

		s.metrics.incFrameSendCount()
		n = NextFrameNumber(n)
	}

	if s.cfg.networkAck {
		if err := s.sendAndAwaitAck([]byte{ETX}); err != nil {
			return s.abortSend(err)
		}
	}

	return s.writeOut([]byte{EOT})
}

// sendAndAwaitAck writes one transmission unit and blocks until the peer
// acknowledges it.
func (s *Session) sendAndAwaitAck(data []byte) error {
	if err := s.writeOut(data); err != nil {
		return err
	}

	return s.awaitAck()
}

// awaitAck reads tokens until an ACK arrives or the ACK timeout expires.
//
// An inbound ENQ while we hold the line is answered with NAK without
// altering send progress. Any other token, a framing error, or a timeout
// is a failure; the caller aborts the transfer.
func (s *Session) awaitAck() error {
	deadline := time.Now().Add(s.cfg.ackTimeout)

	for {
		tok, err := s.readToken(deadline)
		if err != nil {
			return err
		}

		switch tok.Kind {
		case TokenACK:
			return nil

		case TokenENQ:
			// Peer contends for the line mid-transfer: busy.
			s.logger.Debug("astm: ENQ while sending, replying NAK")
			_ = s.writeOut([]byte{NAK})

			continue

		default:
			return fmt.Errorf("%w: expected ACK, got %s", ErrSendAborted, tok.Kind)
		}
	}
}

// abortSend terminates a failed transfer: a single EOT is sent, buffers
// are cleared, and the causal error is returned for the session to log.
func (s *Session) abortSend(cause error) error {
	_ = s.writeOut([]byte{EOT})
	s.framer.Reset()

	return cause
}
