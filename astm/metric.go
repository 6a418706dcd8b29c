package astm

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for an ASTM session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// FrameRecvCount indicates the number of valid data frames received.
	FrameRecvCount atomic.Uint64
	// FrameSendCount indicates the number of data frames sent (ACK'd).
	FrameSendCount atomic.Uint64
	// FrameNakCount indicates the number of NAKs sent for corrupt frames.
	FrameNakCount atomic.Uint64

	// MsgRecvCount indicates the number of complete messages received.
	MsgRecvCount atomic.Uint64
	// MsgSendCount indicates the number of outbound messages sent.
	MsgSendCount atomic.Uint64
	// SendAbortCount indicates the number of outbound transfers aborted.
	SendAbortCount atomic.Uint64

	// ReadingCount indicates the number of readings handed to the store.
	ReadingCount atomic.Uint64
	// QueryCount indicates the number of query records received.
	QueryCount atomic.Uint64
}

func (m *SessionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *SessionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *SessionMetrics) incFrameNakCount() {
	m.FrameNakCount.Add(1)
}

func (m *SessionMetrics) incMsgRecvCount() {
	m.MsgRecvCount.Add(1)
}

func (m *SessionMetrics) incMsgSendCount() {
	m.MsgSendCount.Add(1)
}

func (m *SessionMetrics) incSendAbortCount() {
	m.SendAbortCount.Add(1)
}

func (m *SessionMetrics) addReadingCount(n int) {
	m.ReadingCount.Add(uint64(n))
}

func (m *SessionMetrics) addQueryCount(n int) {
	m.QueryCount.Add(uint64(n))
}
