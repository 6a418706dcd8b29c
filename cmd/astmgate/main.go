// astmgate bridges one clinical analyzer speaking ASTM E1394 / LIS2-A2
// to a laboratory information system database. It receives result
// messages, persists qualified readings, and answers sample queries with
// pending test orders.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labgate/go-astm/astm"
	"github.com/labgate/go-astm/gateway"
	"github.com/labgate/go-astm/logger"
	"github.com/labgate/go-astm/store"
)

func main() {
	l := logger.GetLogger()

	cfg, err := gateway.LoadConfig()
	if err != nil {
		l.Fatal("invalid configuration", "error", err)
	}

	var st astm.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.Open(cfg.DatabaseURL, l)
		if err != nil {
			l.Fatal("failed to open database", "error", err)
		}
		defer gormStore.Close()

		st = gormStore
	} else {
		l.Warn("no DATABASE_URL set, using in-memory store")
		st = store.NewMemStore()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("starting gateway",
		"machine", cfg.MachineName,
		"mode", cfg.Mode,
		"role", cfg.Role)

	gw := gateway.New(cfg, st, nil, l)

	if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
		l.Error("gateway terminated", "error", err)
		os.Exit(1)
	}

	l.Info("gateway stopped")
}
