package astm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labgate/go-astm/internal/pool"
	"github.com/labgate/go-astm/internal/task"
	"github.com/labgate/go-astm/logger"
	"github.com/labgate/go-astm/transport"
)

// queueTimeout bounds how long QueueMessage waits for space in the
// outbound queue.
const queueTimeout = time.Second

// readChunkSize is the protocol loop's read buffer size.
const readChunkSize = 512

// SessionState is the transfer direction of the session. At any instant
// at most one direction is transferring.
type SessionState uint32

const (
	// StateIdle means no transfer is active. Only Idle accepts an inbound
	// ENQ or starts an outbound transfer.
	StateIdle SessionState = iota
	// StateReceiving means an inbound transfer is open.
	StateReceiving
	// StateSending means an outbound transfer is in progress.
	StateSending
)

// String returns the string representation of the session state.
func (st SessionState) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Session is the controller that owns one transport-attached ASTM link.
//
// It multiplexes the shared byte stream between the receive and send
// directions, arbitrating so that only one direction transfers at a time.
// Inbound result messages are decoded into readings and handed to the
// persistence collaborator; inbound queries are answered by fetching the
// pending orders and driving the outbound handshake.
//
// The protocol loop runs on a single managed goroutine; all component
// state (framer, receive buffer, frame numbering) is owned by that loop
// and never aliased.
type Session struct {
	pctx      context.Context
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *SessionConfig
	logger    logger.Logger

	tr     transport.Transport
	reader *bufio.Reader
	framer *Framer
	rx     *receiver

	store Store
	sink  EventSink

	taskMgr *task.Manager
	outChan chan []string

	state atomic.Uint32

	// lastInbound tracks receive-direction progress for the no-progress
	// timer. Only the protocol loop touches it.
	lastInbound time.Time

	readBuf []byte

	metrics SessionMetrics

	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewSession creates a session over the given transport.
//
// store receives the readings of every completed inbound message and
// serves order lookups for received queries. sink observes link events;
// pass NopSink{} when no observer is needed.
func NewSession(ctx context.Context, cfg *SessionConfig, tr transport.Transport, store Store, sink EventSink) *Session {
	s := &Session{
		pctx:    ctx,
		cfg:     cfg,
		logger:  cfg.logger,
		tr:      tr,
		reader:  bufio.NewReader(tr),
		framer:  NewFramer(),
		store:   store,
		sink:    sink,
		outChan: make(chan []string, cfg.sendQueueSize),
		readBuf: make([]byte, readChunkSize),
		done:    make(chan struct{}),
	}

	s.ctx, s.ctxCancel = context.WithCancel(ctx)
	s.rx = newReceiver(s.logger)
	s.taskMgr = task.NewManager(s.ctx, s.logger)
	s.state.Store(uint32(StateIdle))

	return s
}

// Start launches the protocol loop.
func (s *Session) Start() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	return s.taskMgr.Start("protocolLoop", s.loopIteration)
}

// Done is closed when the protocol loop has terminated, either through
// Close or a transport failure. The owner uses it to drive reconnection.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Metrics returns the metrics associated with the session.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// QueueMessage queues a pre-built message (a slice of record strings) for
// transmission. The protocol loop picks it up when the session is idle.
func (s *Session) QueueMessage(records []string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	timer := pool.GetTimer(queueTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-timer.C:
		return ErrQueueFull
	case s.outChan <- records:
		return nil
	}
}

// Close terminates the session: the transport is closed, in-flight I/O is
// dropped, the session is forced to Idle, and all buffers are cleared.
// Close is idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Debug("astm: closing session", "state", s.State().String())

	s.ctxCancel()

	if err := s.tr.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("astm: failed to close transport", "error", err)
	}

	s.taskMgr.Stop()
	s.taskMgr.Wait()

	s.setState(StateIdle)
	s.rx.reset()
	s.framer.Reset()
	s.markDone()

	return nil
}

// --- Protocol loop ---

// loopIteration performs a single iteration of the protocol loop.
//
// Outbound messages are only taken up while the session is idle; when an
// inbound transfer is open, the loop keeps draining the transport so the
// analyzer is never stalled.
func (s *Session) loopIteration() bool {
	select {
	case <-s.ctx.Done():
		s.markDone()

		return false
	default:
	}

	if s.State() == StateIdle {
		select {
		case records := <-s.outChan:
			s.transmit(records)

			return true
		default:
		}
	}

	return s.pollInbound()
}

// pollInbound reads a chunk of bytes with a short timeout and feeds it to
// the framer. On an idle timeout it checks the no-progress timer of an
// open receive transfer.
func (s *Session) pollInbound() bool {
	if err := s.tr.SetReadDeadline(time.Now().Add(s.cfg.pollTimeout)); err != nil {
		s.logger.Error("astm: failed to set read deadline", "error", err)
		s.markDone()

		return false
	}

	n, err := s.reader.Read(s.readBuf)
	if err != nil {
		if isTimeoutError(err) {
			s.checkNoProgress()

			return true
		}

		// Transport closed or failed: end the session and surface to the
		// owner for its reconnect loop.
		s.logger.Debug("astm: transport read failed", "error", err)
		s.setState(StateIdle)
		s.rx.reset()
		s.markDone()

		return false
	}

	if n == 0 {
		return true
	}

	chunk := s.readBuf[:n]
	s.sink.OnRaw(chunk)
	s.lastInbound = time.Now()

	for _, b := range chunk {
		tok, err := s.framer.Push(b)
		if err != nil {
			// Framing error: reply NAK, drop the buffer, stay in the
			// current session state.
			s.logger.Debug("astm: framing error", "error", err)
			s.metrics.incFrameNakCount()
			_ = s.writeOut([]byte{NAK})

			continue
		}

		if tok.Kind != TokenNone {
			s.handleToken(tok)
		}
	}

	return true
}

// checkNoProgress aborts an open receive transfer when no byte has
// arrived within the configured window.
func (s *Session) checkNoProgress() {
	if s.State() != StateReceiving {
		return
	}

	if time.Since(s.lastInbound) < s.cfg.noProgressTimeout {
		return
	}

	s.logger.Warn("astm: no progress while receiving, aborting transfer",
		"timeout", s.cfg.noProgressTimeout)

	s.rx.reset()
	s.setState(StateIdle)
}

// handleToken dispatches one link-layer token according to the session
// state.
func (s *Session) handleToken(tok Token) {
	switch tok.Kind {
	case TokenENQ:
		if s.State() != StateIdle {
			// Busy: a transfer is already active in either direction.
			_ = s.writeOut([]byte{NAK})

			return
		}

		s.rx.reset()
		s.setState(StateReceiving)
		s.lastInbound = time.Now()
		_ = s.writeOut([]byte{ACK})

	case TokenFrame:
		if s.State() != StateReceiving {
			s.logger.Debug("astm: data frame outside receive transfer")
			_ = s.writeOut([]byte{NAK})

			return
		}

		act := s.rx.onFrame(tok.Data)

		if act.abort {
			s.metrics.incFrameNakCount()
			_ = s.writeOut(act.reply)
			s.setState(StateIdle)

			return
		}

		if len(act.reply) == 1 && act.reply[0] == ACK {
			s.metrics.incFrameRecvCount()
		} else {
			s.metrics.incFrameNakCount()
		}

		_ = s.writeOut(act.reply)

	case TokenSTX, TokenETX:
		// Some instruments emit STX/ETX out-of-band around data frames.
		if s.State() == StateReceiving && s.cfg.networkAck {
			_ = s.writeOut([]byte{ACK})
		}

	case TokenEOT:
		if s.State() != StateReceiving {
			s.logger.Debug("astm: stray EOT", "state", s.State().String())

			return
		}

		act := s.rx.onEOT()
		_ = s.writeOut(act.reply)
		s.setState(StateIdle)

		if act.message != nil {
			s.processMessage(act.message)
		}

	case TokenACK, TokenNAK:
		// Stray acknowledgement outside a send transfer.
		s.logger.Debug("astm: stray token", "token", tok.Kind.String())
	}
}

// processMessage decodes a completed inbound message, persists its
// readings, and answers its queries.
//
// It runs synchronously in the protocol loop, so persistence writes for a
// message are issued before the next ENQ is accepted.
func (s *Session) processMessage(body []byte) {
	content := ParseMessage(body, s.cfg.machineName)
	s.metrics.incMsgRecvCount()

	for _, rec := range content.Records {
		s.sink.OnDecoded(rec)
	}

	if len(content.Readings) > 0 {
		if err := s.store.InsertReadings(s.ctx, content.Readings); err != nil {
			// The message is already acknowledged at the link layer;
			// readings from this batch are lost.
			s.logger.Error("astm: failed to persist readings",
				"count", len(content.Readings),
				"error", err)
		} else {
			s.metrics.addReadingCount(len(content.Readings))
		}
	}

	if len(content.Queries) > 0 {
		s.metrics.addQueryCount(len(content.Queries))
	}

	for _, labNumber := range content.Queries {
		s.answerQuery(labNumber)
	}
}

// answerQuery fetches the pending orders for a queried lab number and
// transmits the order message.
func (s *Session) answerQuery(labNumber string) {
	orders, err := s.store.FetchOrders(s.ctx, labNumber)
	if err != nil {
		s.logger.Error("astm: failed to fetch orders",
			"labNumber", labNumber,
			"error", err)

		return
	}

	s.logger.Debug("astm: answering query",
		"labNumber", labNumber,
		"orders", len(orders))

	records := BuildOrderMessage(s.cfg.machineName, labNumber, orders, time.Now())
	s.transmit(records)
}

// transmit runs one outbound transfer. The session must be idle.
func (s *Session) transmit(records []string) {
	if s.State() != StateIdle {
		s.logger.Warn("astm: cannot transmit, session not idle",
			"state", s.State().String())

		return
	}

	s.setState(StateSending)

	err := s.sendMessage(records)

	s.setState(StateIdle)

	if err != nil {
		s.metrics.incSendAbortCount()
		s.logger.Error("astm: outbound transfer failed",
			"records", len(records),
			"error", err)

		return
	}

	s.metrics.incMsgSendCount()
}

// --- I/O helpers ---

// readToken reads bytes through the framer until a token completes or the
// deadline expires.
func (s *Session) readToken(deadline time.Time) (Token, error) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Token{}, ErrAckTimeout
		}

		if err := s.tr.SetReadDeadline(deadline); err != nil {
			return Token{}, err
		}

		b, err := s.reader.ReadByte()
		if err != nil {
			if isTimeoutError(err) {
				return Token{}, ErrAckTimeout
			}

			return Token{}, fmt.Errorf("%w: %w", ErrTransportClosed, err)
		}

		s.sink.OnRaw([]byte{b})

		tok, err := s.framer.Push(b)
		if err != nil {
			return Token{}, err
		}

		if tok.Kind != TokenNone {
			return tok, nil
		}
	}
}

// writeOut writes data to the transport in full and reports it to the
// sink.
func (s *Session) writeOut(data []byte) error {
	s.sink.OnSent(data)

	for written := 0; written < len(data); {
		n, err := s.tr.Write(data[written:])
		written += n

		if err != nil {
			return fmt.Errorf("astm: transport write: %w", err)
		}
	}

	return nil
}

// setState transitions the session state and notifies the sink.
func (s *Session) setState(to SessionState) {
	from := SessionState(s.state.Swap(uint32(to)))
	if from == to {
		return
	}

	s.logger.Debug("astm: state change", "from", from.String(), "to", to.String())
	s.sink.OnStatus(StatusChange{From: from, To: to})
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// isTimeoutError reports whether err is a read-deadline expiry rather
// than a transport failure.
func isTimeoutError(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
