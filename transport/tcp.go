package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/labgate/go-astm/logger"
)

// DefaultConnectTimeout is the TCP dial timeout for the originating role.
const DefaultConnectTimeout = 3 * time.Second

// DefaultAcceptTimeout is the accept deadline per iteration for the
// listening role.
const DefaultAcceptTimeout = 1 * time.Second

// Dial connects to an analyzer that listens on address ("host:port").
// The returned net.Conn satisfies Transport.
func Dial(ctx context.Context, address string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// TCPServer accepts a single analyzer connection at a time, matching the
// point-to-point nature of the ASTM link.
type TCPServer struct {
	listener      net.Listener
	logger        logger.Logger
	acceptTimeout time.Duration
}

// NewTCPServer starts listening on address ("host:port").
func NewTCPServer(ctx context.Context, address string, l logger.Logger) (*TCPServer, error) {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	l.Debug("transport: listening", "address", listener.Addr())

	return &TCPServer{
		listener:      listener,
		logger:        l,
		acceptTimeout: DefaultAcceptTimeout,
	}, nil
}

// Addr returns the listener's address.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Accept blocks until an analyzer connects or ctx is cancelled. The accept
// deadline is re-armed each iteration so cancellation is honored promptly.
func (s *TCPServer) Accept(ctx context.Context) (Transport, error) {
	tcpListener, ok := s.listener.(*net.TCPListener)
	if !ok {
		return nil, errors.New("transport: listener is not TCP")
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := tcpListener.SetDeadline(time.Now().Add(s.acceptTimeout)); err != nil {
			return nil, err
		}

		conn, err := tcpListener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return nil, err
		}

		s.logger.Debug("transport: connection accepted", "remoteAddr", conn.RemoteAddr())

		return conn, nil
	}
}

// Close closes the listener.
func (s *TCPServer) Close() error {
	return s.listener.Close()
}
