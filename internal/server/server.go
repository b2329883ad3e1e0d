package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/z060142/FireNET/internal/core"
	"github.com/z060142/FireNET/internal/protocol"
	"github.com/z060142/FireNET/internal/query"
	"github.com/z060142/FireNET/internal/registry"
)

// Server states.
const (
	serverOffline int32 = iota
	serverOnline
	serverClosing
)

// Server accepts TLS client connections and spreads them across a fixed
// pool of workers. Connection counts per worker stay balanced via
// least-loaded assignment on accept.
type Server struct {
	config *core.Config
	logger *logrus.Logger

	registry *registry.Registry
	deps     *query.Deps

	tlsConfig *tls.Config
	listener  net.Listener
	workers   []*Worker

	state        atomic.Int32
	nextConnID   atomic.Uint64
	workerCancel context.CancelFunc
	wg           sync.WaitGroup
}

func New(config *core.Config, logger *logrus.Logger, reg *registry.Registry, deps *query.Deps) *Server {
	return &Server{
		config:   config,
		logger:   logger,
		registry: reg,
		deps:     deps,
	}
}

// Listen binds the server socket, spins up the worker pool, and starts
// accepting connections. It returns once the server is online; the accept
// loop runs on its own goroutine until Stop is called.
func (s *Server) Listen(ctx context.Context) error {
	if !s.state.CompareAndSwap(serverOffline, serverOnline) {
		return errors.New("server is already listening")
	}

	if s.config.MaxThreads <= 0 {
		s.state.Store(serverOffline)
		return errors.New("thread count is not configured")
	}

	certificate, err := tls.LoadX509KeyPair(s.config.TLS.CertificateFile, s.config.TLS.KeyFile)
	if err != nil {
		s.state.Store(serverOffline)
		return fmt.Errorf("error loading TLS keypair: %w", err)
	}
	s.tlsConfig = &tls.Config{Certificates: []tls.Certificate{certificate}}

	listener, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		s.state.Store(serverOffline)
		return fmt.Errorf("error binding %s: %w", s.config.ListenAddress(), err)
	}
	s.listener = listener

	workerCtx, cancel := context.WithCancel(ctx)
	s.workerCancel = cancel

	s.workers = make([]*Worker, s.config.MaxThreads)
	for i := range s.workers {
		worker := newWorker(i, s.config, s.logger, s.tlsConfig, s.registry, s.deps)
		s.workers[i] = worker

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			worker.run(workerCtx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	s.logger.Infof("server online at %s with %d worker(s)", s.config.ListenAddress(), len(s.workers))
	return nil
}

// Addr returns the bound listener address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.state.Load() == serverClosing {
				return
			}
			s.logger.Errorf("error accepting connection: %s", err)
			continue
		}

		s.AcceptIncoming(conn)
	}
}

// AcceptIncoming admits one accepted socket: the connection is rejected
// outright when the server is full, otherwise it is handed to the
// least-loaded worker. The capacity check happens before any TLS work so a
// full server spends nothing on rejected peers.
func (s *Server) AcceptIncoming(conn net.Conn) {
	if s.registry.Count() >= s.config.MaxConnections {
		s.logger.Warnf("rejecting connection from %s: server is full", conn.RemoteAddr())
		_ = conn.Close()
		return
	}

	worker := s.pickWorker()
	if worker == nil {
		s.logger.Errorf("rejecting connection from %s: no workers available", conn.RemoteAddr())
		_ = conn.Close()
		return
	}

	worker.Attach(conn, s.nextConnID.Add(1))
}

// pickWorker selects the worker that should adopt the next connection.
// First pass finds the heaviest load; second pass takes the first worker
// strictly below it, so ties resolve to the last worker.
func (s *Server) pickWorker() *Worker {
	if len(s.workers) == 0 {
		return nil
	}

	max := 0
	for _, worker := range s.workers {
		if count := worker.Count(); count > max {
			max = count
		}
	}

	for _, worker := range s.workers {
		if worker.Count() < max {
			return worker
		}
	}

	return s.workers[len(s.workers)-1]
}

// BroadcastToAuthenticated writes the envelope to every authenticated
// client.
func (s *Server) BroadcastToAuthenticated(envelope *protocol.Envelope) {
	s.registry.Broadcast(envelope)
}

// SendTo writes the envelope to the authenticated client with uid,
// reporting whether such a client is online.
func (s *Server) SendTo(uid int, envelope *protocol.Envelope) bool {
	client, online := s.registry.GetByUID(uid)
	if !online {
		return false
	}
	if err := client.Conn.SendEnvelope(envelope); err != nil {
		s.logger.Warnf("send to client %d failed: %s", client.ID, err)
	}
	return true
}

// Stop takes the server offline: the listener closes first so no new
// connections arrive, then every worker drains its connections. The wait
// is bounded by ctx; remaining connection goroutines are abandoned once it
// expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(serverOnline, serverClosing) {
		return errors.New("server is not running")
	}

	s.logger.Info("server shutting down")

	if err := s.listener.Close(); err != nil {
		s.logger.Errorf("error closing listener: %s", err)
	}
	s.workerCancel()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info("server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait aborted: %w", ctx.Err())
	}
}
