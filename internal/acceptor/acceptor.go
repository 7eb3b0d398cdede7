// Package acceptor runs the TCP listener that accepts remote client
// connections and hands each one to the coordinator as a new session.
package acceptor

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/baccuslab/blds/internal/coordinator"
	"github.com/baccuslab/blds/internal/session"
)

// Acceptor owns the client-facing net.Listener and enforces the
// max-connections cap before handing a connection off to the coordinator.
type Acceptor struct {
	coord  *coordinator.Coordinator
	logger *slog.Logger

	maxConnections int
}

// New builds an Acceptor that registers accepted connections with coord.
func New(coord *coordinator.Coordinator, maxConnections int, logger *slog.Logger) *Acceptor {
	return &Acceptor{
		coord:          coord,
		logger:         logger,
		maxConnections: maxConnections,
	}
}

// Run accepts connections on ln until ctx is cancelled, registering each
// one with the coordinator. It blocks until the listener is closed; the
// caller owns opening ln (e.g. via net.Listen) and should pass ctx through
// to ListenConfig.Listen if cancellable setup is needed.
func (a *Acceptor) Run(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	a.logger.Info("acceptor listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("acceptor: accept: %w", err)
			}
		}
		a.handle(ctx, conn)
	}
}

// handle enforces max-connections against the coordinator's own count of
// registered clients (a race against in-flight Connects is possible and
// accepted: the cap is a soft limit, not an exact one) and, if admitted,
// registers the connection as a new session.
func (a *Acceptor) handle(ctx context.Context, conn net.Conn) {
	if a.maxConnections > 0 && len(a.coord.RequestStatus().Clients) >= a.maxConnections {
		a.logger.Warn("rejecting connection, at max-connections", "remote", conn.RemoteAddr())
		conn.Close()
		return
	}

	sess := session.New(conn, a.logger)
	a.coord.AddSession(ctx, sess)
}
