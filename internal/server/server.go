// Package server implements PetraCache's TCP accept loop and per-connection
// command engine on top of the protocol and storage packages.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/petra/petracache/internal/admission"
	"github.com/petra/petracache/internal/config"
	"github.com/petra/petracache/internal/logging"
	"github.com/petra/petracache/internal/metrics"
	"github.com/petra/petracache/internal/storage"
)

// Server owns the listener and dispatches every accepted connection to
// its own goroutine, bounded by an admission.Controller.
type Server struct {
	cfg       config.ServerConfig
	store     *storage.Store
	metrics   *metrics.Metrics
	admission *admission.Controller

	connsMu sync.Mutex
	conns   map[*connection]struct{}
}

// New builds a Server. It does not start listening until Run is called.
func New(cfg config.ServerConfig, store *storage.Store, m *metrics.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		metrics:   m,
		admission: admission.New(cfg.MaxConnections),
		conns:     make(map[*connection]struct{}),
	}
}

func (s *Server) track(c *connection) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrack(c *connection) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

func (s *Server) snapshotConns() []*connection {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return maps.Keys(s.conns)
}

// reapIdleConnections periodically closes connections that have had no
// activity for longer than the configured idle timeout. It runs only
// when ServerConfig.ConnectionIdleTimeoutSec is non-zero; idle reaping
// is a housekeeping nicety, not required for protocol correctness.
func (s *Server) reapIdleConnections(ctx context.Context) {
	period := s.cfg.IdleTimeout()
	if period <= 0 {
		return
	}

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.sweepIdle(period)
			timer.Reset(period)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) sweepIdle(period time.Duration) {
	now := time.Now()
	for _, c := range s.snapshotConns() {
		if now.Sub(c.lastActivity()) >= period {
			logging.Debugf("closing idle connection from %s", c.conn.RemoteAddr())
			_ = c.conn.Close()
		}
	}
}

// Run binds the listen address and accepts connections until ctx is
// cancelled, at which point it stops accepting and returns once the
// listener is closed. It does not wait for in-flight connections to
// drain; callers that need that should track connections separately.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	logging.Infof("server listening on %s", s.cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		logging.Info("server shutting down")
		_ = listener.Close()
	}()

	go s.reapIdleConnections(ctx)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logging.Errorf("accept error: %v", err)
				continue
			}
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			if err := tcpConn.SetNoDelay(true); err != nil {
				logging.Warnf("failed to set TCP_NODELAY: %v", err)
			}
		}

		if !s.admission.TryAcquire() {
			s.metrics.RejectedConnections.Inc()
			logging.Warnf("connection limit reached, rejecting connection from %s", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		s.metrics.TotalConnections.Inc()
		s.metrics.ActiveConnections.Inc()
		logging.Debugf("accepted connection from %s", conn.RemoteAddr())

		go func(c net.Conn) {
			defer s.admission.Release()
			defer s.metrics.ActiveConnections.Dec()

			conn := newConnection(s, c)
			s.track(conn)
			defer s.untrack(conn)

			if err := conn.run(ctx); err != nil {
				logging.Debugf("connection error: %v", err)
			}
		}(conn)
	}
}
