package server

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/z060142/FireNET/internal/core"
	"github.com/z060142/FireNET/internal/protocol"
	"github.com/z060142/FireNET/internal/query"
	"github.com/z060142/FireNET/internal/registry"
)

// Connection lifecycle states.
const (
	stateAccepting int32 = iota
	stateHandshaking
	stateOpen
	stateClosing
	stateClosed
)

// Connection owns one accepted socket: it performs the TLS handshake,
// enforces the per-connection packet limits, parses inbound envelopes, and
// routes decoded queries to its dispatcher. All reads happen on the
// connection's own goroutine; writes may come from any goroutine and are
// serialized by a mutex.
type Connection struct {
	id     uint64
	raw    net.Conn
	config *core.Config
	logger *logrus.Logger

	tlsConfig *tls.Config
	registry  *registry.Registry
	deps      *query.Deps

	// events delivers the closed signal to the owning worker.
	events chan<- *Connection

	conn       *tls.Conn
	dispatcher *query.Dispatcher

	state      atomic.Int32
	activity   atomic.Int64
	badPackets int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConnection(
	id uint64,
	raw net.Conn,
	config *core.Config,
	logger *logrus.Logger,
	tlsConfig *tls.Config,
	reg *registry.Registry,
	deps *query.Deps,
	events chan<- *Connection,
) *Connection {
	c := &Connection{
		id:        id,
		raw:       raw,
		config:    config,
		logger:    logger,
		tlsConfig: tlsConfig,
		registry:  reg,
		deps:      deps,
		events:    events,
	}
	c.state.Store(stateAccepting)
	c.touch()
	return c
}

// ID returns the connection identity used as the registry key.
func (c *Connection) ID() uint64 { return c.id }

// RemoteAddr returns the peer address for logging.
func (c *Connection) RemoteAddr() string { return c.raw.RemoteAddr().String() }

// run drives the connection from handshake to teardown. It only returns
// once the connection is closed and its closed signal has been delivered.
func (c *Connection) run(ctx context.Context) {
	if !c.handshake() {
		c.close()
		return
	}

	c.opened()
	c.readLoop(ctx)
	c.close()
}

// handshake binds the TLS identity and completes the server-side handshake
// within the configured timeout. A connection that fails here is never
// registered in the client registry.
func (c *Connection) handshake() bool {
	c.state.Store(stateHandshaking)

	conn := tls.Server(c.raw, c.tlsConfig)
	if err := conn.SetDeadline(time.Now().Add(c.config.HandshakeTimeoutDuration())); err != nil {
		c.logger.Errorf("client %d: error arming handshake deadline: %s", c.id, err)
		return false
	}

	if err := conn.Handshake(); err != nil {
		c.logger.Errorf("client %d: TLS handshake failed: %s", c.id, err)
		return false
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.logger.Errorf("client %d: error clearing handshake deadline: %s", c.id, err)
		return false
	}

	c.conn = conn
	return true
}

// opened transitions the connection to Open: the dispatcher is created and
// the connection is registered as an anonymous client.
func (c *Connection) opened() {
	c.state.Store(stateOpen)
	c.dispatcher = query.NewDispatcher(c.deps, c.id, c)

	c.registry.Add(&registry.Client{ID: c.id, Conn: c})
	c.touch()

	c.logger.Infof("client %d connected from %s", c.id, c.RemoteAddr())
}

// readLoop processes inbound envelopes until the peer disconnects, the
// context is cancelled, or the connection is force-closed. Each envelope is
// handled to completion before the next read.
func (c *Connection) readLoop(ctx context.Context) {
	buffer := make([]byte, c.config.MaxPacketSize+1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.state.Load() >= stateClosing {
			return
		}

		// A client that keeps sending garbage gets disconnected before any
		// further reads.
		if c.badPackets >= c.config.MaxBadPackets {
			c.logger.Warnf("client %d exceeded the bad packet limit, closing", c.id)
			return
		}

		n, err := c.conn.Read(buffer)
		if err != nil {
			if !errors.Is(err, io.EOF) && !isClosedConnError(err) {
				c.logger.Errorf("client %d: socket error: %s", c.id, err)
			}
			return
		}

		c.touch()
		c.handleFrame(ctx, buffer[:n])
	}
}

// handleFrame applies the packet limits and dispatches one received frame.
func (c *Connection) handleFrame(ctx context.Context, frame []byte) {
	if len(frame) > c.config.MaxPacketSize {
		c.logger.Warnf("client %d sent an oversized packet (%d bytes)", c.id, len(frame))
		c.badPackets++
		return
	}
	if len(frame) == 0 {
		c.logger.Debugf("client %d sent an empty packet", c.id)
		c.badPackets++
		return
	}

	envelope, err := protocol.Decode(frame)
	if err != nil {
		c.logger.Warnf("client %d: error reading packet: can't get packet type: %s", c.id, err)
		return
	}

	if c.config.Debugging.PacketLoggingEnabled {
		c.logger.Debugf("client %d envelope:\n%s", c.id, spew.Sdump(envelope))
	}

	if envelope.Type != protocol.PacketQuery {
		c.logger.Warnf("client %d sent a non-query envelope (type %d), dropping", c.id, envelope.Type)
		return
	}

	c.dispatcher.Dispatch(ctx, envelope.Query, envelope.Payload)
}

// SendEnvelope writes an envelope to the peer with a bounded flush wait.
// Safe for concurrent use; broadcasts write from other goroutines.
func (c *Connection) SendEnvelope(envelope *protocol.Envelope) error {
	if c.state.Load() != stateOpen {
		return errors.New("connection is not open")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeoutDuration())); err != nil {
		return err
	}

	data := envelope.Encode()
	sent := 0
	for sent < len(data) {
		n, err := c.conn.Write(data[sent:])
		if err != nil {
			return err
		}
		sent += n
	}

	c.touch()
	return nil
}

// IdleTime returns the elapsed time since the last activity on this
// connection; the owning worker's idle sweep is its only consumer.
func (c *Connection) IdleTime() time.Duration {
	return time.Since(time.Unix(0, c.activity.Load()))
}

func (c *Connection) touch() {
	c.activity.Store(time.Now().UnixNano())
}

// Close force-closes the connection. Closing the socket unblocks the read
// loop, which drives the rest of the teardown. Safe to call multiple times
// and from any goroutine.
func (c *Connection) Close() {
	if c.state.Load() >= stateClosing {
		return
	}
	c.state.Store(stateClosing)
	_ = c.raw.Close()
}

// close runs the disconnect path exactly once: deregister, close the
// socket, and deliver the closed signal to the owning worker.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		registered := c.state.Load() >= stateOpen || c.conn != nil
		c.state.Store(stateClosed)

		_ = c.raw.Close()

		if registered && c.dispatcher != nil {
			c.registry.Remove(c.id)
			c.logger.Infof("client %d disconnected", c.id)
		}

		c.events <- c
	})
}

// isClosedConnError reports whether err is the routine error produced by
// reading from a socket we closed ourselves.
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
