package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/labgate/go-astm/astm"
	"github.com/labgate/go-astm/internal/pool"
	"github.com/labgate/go-astm/logger"
	"github.com/labgate/go-astm/transport"
)

// Reconnect backoff bounds. The delay doubles on each failed attempt and
// resets after a link is established.
const (
	initialRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// Gateway owns one analyzer link. It establishes the transport per the
// configuration, runs a session over it, and reconnects with exponential
// backoff whenever the link drops.
type Gateway struct {
	cfg    Config
	store  astm.Store
	sink   astm.EventSink
	logger logger.Logger

	server *transport.TCPServer
}

// New creates a gateway. sink may be nil when no observer is needed.
func New(cfg Config, store astm.Store, sink astm.EventSink, l logger.Logger) *Gateway {
	if sink == nil {
		sink = astm.NopSink{}
	}

	return &Gateway{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		logger: l.With("machine", cfg.MachineName),
	}
}

// Run establishes and serves analyzer links until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	if g.cfg.Mode == ModeNetwork && g.cfg.Role == RoleServer {
		server, err := transport.NewTCPServer(ctx, g.cfg.Endpoint(), g.logger)
		if err != nil {
			return err
		}

		g.server = server
		defer g.server.Close()

		g.logger.Info("gateway: listening for analyzer", "endpoint", g.cfg.Endpoint())
	}

	delay := initialRetryDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tr, err := g.connect(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			g.logger.Warn("gateway: link attempt failed",
				"error", err,
				"retryIn", delay)

			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}

			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}

			continue
		}

		delay = initialRetryDelay
		g.serve(ctx, tr)
	}
}

// connect establishes one transport per the configured mode and role.
func (g *Gateway) connect(ctx context.Context) (transport.Transport, error) {
	if g.cfg.Mode == ModeSerial {
		return transport.OpenSerial(transport.SerialConfig{
			Device:   g.cfg.SerialDevice,
			BaudRate: g.cfg.BaudRate,
			DataBits: g.cfg.DataBits,
			Parity:   g.cfg.Parity,
			StopBits: g.cfg.StopBits,
		})
	}

	if g.cfg.Role == RoleServer {
		return g.server.Accept(ctx)
	}

	return transport.Dial(ctx, g.cfg.Endpoint(), transport.DefaultConnectTimeout)
}

// serve runs one session over an established transport until the link
// drops or ctx is cancelled.
func (g *Gateway) serve(ctx context.Context, tr transport.Transport) {
	sessionCfg, err := astm.NewSessionConfig(g.cfg.MachineName,
		astm.WithNetworkAck(g.cfg.NetworkAck),
		astm.WithLogger(g.logger),
	)
	if err != nil {
		// Configuration is static; this only fires on a programming error.
		g.logger.Error("gateway: invalid session config", "error", err)
		_ = tr.Close()

		return
	}

	session := astm.NewSession(ctx, sessionCfg, tr, g.store, g.sink)

	if err := session.Start(); err != nil {
		g.logger.Error("gateway: failed to start session", "error", err)
		_ = session.Close()

		return
	}

	g.logger.Info("gateway: link established")

	select {
	case <-ctx.Done():
	case <-session.Done():
		g.logger.Warn("gateway: link lost")
	}

	_ = session.Close()
}

// sleepCtx sleeps for d unless ctx is cancelled first. It returns false
// on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
