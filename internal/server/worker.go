package server

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/z060142/FireNET/internal/core"
	"github.com/z060142/FireNET/internal/query"
	"github.com/z060142/FireNET/internal/registry"
)

const (
	// idleSweepInterval is how often a worker scans its connections for ones
	// that have gone quiet past the configured idle timeout.
	idleSweepInterval = time.Second

	// drainTimeout bounds how long a worker waits for its connections to
	// finish tearing down during shutdown.
	drainTimeout = 5 * time.Second
)

// Worker owns a fixed slice of the server's connections. All mutations to
// its connection set happen on the worker's own goroutine; only the
// connection count is read from outside, behind a read lock.
type Worker struct {
	id     int
	config *core.Config
	logger *logrus.Logger

	tlsConfig *tls.Config
	registry  *registry.Registry
	deps      *query.Deps

	attach chan *Connection
	events chan *Connection

	mu          sync.RWMutex
	connections map[uint64]*Connection

	wg   sync.WaitGroup
	done chan struct{}
}

func newWorker(
	id int,
	config *core.Config,
	logger *logrus.Logger,
	tlsConfig *tls.Config,
	reg *registry.Registry,
	deps *query.Deps,
) *Worker {
	return &Worker{
		id:          id,
		config:      config,
		logger:      logger,
		tlsConfig:   tlsConfig,
		registry:    reg,
		deps:        deps,
		attach:      make(chan *Connection, 16),
		events:      make(chan *Connection, 16),
		connections: make(map[uint64]*Connection),
		done:        make(chan struct{}),
	}
}

// Count returns the number of connections currently owned by this worker.
func (w *Worker) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.connections)
}

// Attach hands a freshly accepted connection to this worker. The handoff is
// asynchronous so the accept loop never blocks on a busy worker.
func (w *Worker) Attach(conn net.Conn, id uint64) {
	w.attach <- newConnection(id, conn, w.config, w.logger, w.tlsConfig, w.registry, w.deps, w.events)
}

// run is the worker loop: it adopts attached connections, reaps closed
// ones, and periodically sweeps for idle peers. Cancelling ctx starts a
// graceful drain of every owned connection.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case conn := <-w.attach:
			w.adopt(ctx, conn)
		case conn := <-w.events:
			w.reap(conn)
		case <-ticker.C:
			w.sweepIdle()
		}
	}
}

func (w *Worker) adopt(ctx context.Context, conn *Connection) {
	w.mu.Lock()
	w.connections[conn.ID()] = conn
	w.mu.Unlock()

	w.logger.Debugf("worker %d adopted connection %d", w.id, conn.ID())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		conn.run(ctx)
	}()
}

func (w *Worker) reap(conn *Connection) {
	w.mu.Lock()
	delete(w.connections, conn.ID())
	w.mu.Unlock()

	w.logger.Debugf("worker %d released connection %d", w.id, conn.ID())
}

// sweepIdle force-closes every connection whose quiet period has reached
// the configured idle timeout. Closing the socket unblocks the connection's
// read loop, which finishes the teardown and reports back on the events
// channel.
func (w *Worker) sweepIdle() {
	timeout := w.config.IdleTimeoutDuration()
	if timeout <= 0 {
		return
	}

	type idleConn struct {
		conn  *Connection
		quiet time.Duration
	}

	w.mu.RLock()
	var idle []idleConn
	for _, conn := range w.connections {
		if quiet := conn.IdleTime(); quiet >= timeout {
			idle = append(idle, idleConn{conn, quiet})
		}
	}
	w.mu.RUnlock()

	for _, ic := range idle {
		w.logger.Infof("closing idle connection %d (quiet for %s)", ic.conn.ID(), ic.quiet.Truncate(time.Second))
		ic.conn.Close()
	}
}

// shutdown force-closes every owned connection and waits, up to
// drainTimeout, for their goroutines to finish.
func (w *Worker) shutdown() {
	w.mu.RLock()
	conns := make([]*Connection, 0, len(w.connections))
	for _, conn := range w.connections {
		conns = append(conns, conn)
	}
	w.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	// Keep consuming closed signals while waiting so connection goroutines
	// never block on delivery.
	deadline := time.After(drainTimeout)
	for {
		select {
		case conn := <-w.events:
			w.reap(conn)
		case <-finished:
			for {
				select {
				case conn := <-w.events:
					w.reap(conn)
				default:
					w.logger.Debugf("worker %d stopped", w.id)
					return
				}
			}
		case <-deadline:
			w.logger.Warnf("worker %d timed out waiting for %d connection(s) to drain", w.id, w.Count())
			return
		}
	}
}
