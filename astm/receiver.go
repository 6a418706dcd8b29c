package astm

import (
	"bytes"

	"github.com/labgate/go-astm/logger"
)

// maxConsecutiveBadFrames is the number of consecutive corrupt frames
// after which the receive transfer is abandoned and the session aborts
// back to Idle with an EOT to the peer.
const maxConsecutiveBadFrames = 3

// rxAction is the outcome of feeding one token to the receiver. The
// session applies it: reply bytes go to the transport, a non-nil message
// is handed to the record parser, abort forces the session back to Idle.
type rxAction struct {
	reply   []byte
	message []byte
	abort   bool
}

// receiver accumulates the body of one inbound message.
//
// It owns the receive-direction buffer exclusively; the buffer is cleared
// whenever the session returns to Idle. receiver is NOT goroutine-safe —
// the protocol loop is its only caller.
type receiver struct {
	logger logger.Logger

	body      bytes.Buffer
	badFrames int
}

func newReceiver(l logger.Logger) *receiver {
	return &receiver{logger: l}
}

// onFrame validates one data frame and accumulates its record payload.
//
// The payload is stripped of the frame-number digit and the checksum
// suffix and appended to the body with its CR terminator restored. A
// corrupt frame is discarded with a NAK; the third consecutive corruption
// aborts the transfer with an EOT.
func (r *receiver) onFrame(frame []byte) rxAction {
	_, record, err := ParseFrame(frame)
	if err != nil {
		r.badFrames++
		r.logger.Debug("astm: rejecting corrupt frame",
			"error", err,
			"consecutive", r.badFrames)

		if r.badFrames >= maxConsecutiveBadFrames {
			r.reset()

			return rxAction{reply: []byte{EOT}, abort: true}
		}

		return rxAction{reply: []byte{NAK}}
	}

	r.badFrames = 0
	r.body.Write(record)
	r.body.WriteByte(CR)

	return rxAction{reply: []byte{ACK}}
}

// onEOT completes the transfer: the accumulated body is returned for
// record parsing and the receiver resets. The ACK is emitted exactly once.
func (r *receiver) onEOT() rxAction {
	var message []byte
	if r.body.Len() > 0 {
		message = make([]byte, r.body.Len())
		copy(message, r.body.Bytes())
	}

	r.reset()

	return rxAction{reply: []byte{ACK}, message: message}
}

// reset clears the accumulated body and the corruption counter.
func (r *receiver) reset() {
	r.body.Reset()
	r.badFrames = 0
}
