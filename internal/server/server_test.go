package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/z060142/FireNET/internal/core"
	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/protocol"
	"github.com/z060142/FireNET/internal/query"
	"github.com/z060142/FireNET/internal/registry"
	"github.com/z060142/FireNET/internal/shop"
	"github.com/z060142/FireNET/internal/storage/memory"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *core.Config {
	cfg := &core.Config{
		Hostname:         "127.0.0.1",
		Port:             0,
		MaxThreads:       2,
		MaxConnections:   8,
		MaxPacketSize:    1024,
		MaxBadPackets:    3,
		HandshakeTimeout: 2,
		IdleTimeout:      60,
		WriteTimeout:     2,
	}
	return cfg
}

func testDeps(logger *logrus.Logger, reg *registry.Registry) *query.Deps {
	return &query.Deps{
		Logger:   logger,
		Registry: reg,
		DB:       db.NewWorker(memory.New()),
		Catalog:  shop.NewCatalog("shop.xml"),
	}
}

// fakeNetConn satisfies net.Conn for tests that only care about Close.
type fakeNetConn struct {
	closed bool
}

func (c *fakeNetConn) Read(_ []byte) (int, error)  { return 0, io.EOF }
func (c *fakeNetConn) Write(b []byte) (int, error) { return len(b), nil }
func (c *fakeNetConn) Close() error                { c.closed = true; return nil }
func (c *fakeNetConn) LocalAddr() net.Addr         { return &net.TCPAddr{} }
func (c *fakeNetConn) RemoteAddr() net.Addr        { return &net.TCPAddr{} }
func (c *fakeNetConn) SetDeadline(time.Time) error { return nil }
func (c *fakeNetConn) SetReadDeadline(time.Time) error {
	return nil
}
func (c *fakeNetConn) SetWriteDeadline(time.Time) error {
	return nil
}

// workerWithCount builds a worker whose connection set holds n entries.
func workerWithCount(id, n int) *Worker {
	w := newWorker(id, testConfig(), testLogger(), nil, nil, nil)
	for i := 0; i < n; i++ {
		w.connections[uint64(id*1000+i)] = &Connection{}
	}
	return w
}

func TestPickWorker_LeastLoaded(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   int
	}{
		{"single lightest worker wins", []int{5, 2, 5, 5}, 1},
		{"all equal falls back to the last", []int{3, 3, 3}, 2},
		{"empty pool falls back to the last", []int{0, 0}, 1},
		{"first below max wins", []int{4, 1, 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{}
			for i, count := range tt.counts {
				s.workers = append(s.workers, workerWithCount(i, count))
			}

			picked := s.pickWorker()
			if picked != s.workers[tt.want] {
				t.Errorf("expected worker %d, got worker %d", tt.want, picked.id)
			}
		})
	}
}

func TestAcceptIncoming_RejectsWhenFull(t *testing.T) {
	logger := testLogger()
	reg := registry.New(logger)

	cfg := testConfig()
	cfg.MaxConnections = 2

	for id := uint64(1); id <= 2; id++ {
		reg.Add(&registry.Client{ID: id, Conn: &fakeConnSender{}})
	}

	s := New(cfg, logger, reg, nil)
	conn := &fakeNetConn{}
	s.AcceptIncoming(conn)

	if !conn.closed {
		t.Error("expected the connection to be rejected and closed")
	}
}

type fakeConnSender struct {
	sent int
}

func (s *fakeConnSender) SendEnvelope(*protocol.Envelope) error {
	s.sent++
	return nil
}

func TestServer_TargetedAndBroadcastSends(t *testing.T) {
	logger := testLogger()
	reg := registry.New(logger)

	anonymous := &fakeConnSender{}
	authenticated := &fakeConnSender{}

	reg.Add(&registry.Client{ID: 1, Conn: anonymous})
	reg.Add(&registry.Client{
		ID:      2,
		Conn:    authenticated,
		Profile: model.NewProfile(100001, "Nomad", "soldier", 1000),
		Status:  model.StatusAuthenticated,
	})

	s := New(testConfig(), logger, reg, nil)

	s.BroadcastToAuthenticated(protocol.NewGlobalChat("hello", "Nomad"))
	if anonymous.sent != 0 {
		t.Errorf("expected anonymous client to receive nothing, got %d", anonymous.sent)
	}
	if authenticated.sent != 1 {
		t.Errorf("expected authenticated client to receive 1 envelope, got %d", authenticated.sent)
	}

	if !s.SendTo(100001, protocol.NewPrivateChat("psst", "Nomad")) {
		t.Error("expected the targeted send to find the client")
	}
	if authenticated.sent != 2 {
		t.Errorf("expected authenticated client to receive 2 envelopes, got %d", authenticated.sent)
	}

	if s.SendTo(999999, protocol.NewPrivateChat("psst", "Nomad")) {
		t.Error("did not expect a targeted send to an offline uid to succeed")
	}
}

func TestConnection_BadPacketAccounting(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPacketSize = 8
	cfg.MaxBadPackets = 3

	events := make(chan *Connection, 1)
	c := newConnection(1, &fakeNetConn{}, cfg, testLogger(), nil, nil, nil, events)

	// Oversized and empty frames count against the sender; a truncated
	// envelope is merely dropped.
	c.handleFrame(context.Background(), make([]byte, cfg.MaxPacketSize+1))
	if c.badPackets != 1 {
		t.Errorf("expected 1 bad packet after an oversized frame, got %d", c.badPackets)
	}

	c.handleFrame(context.Background(), nil)
	if c.badPackets != 2 {
		t.Errorf("expected 2 bad packets after an empty frame, got %d", c.badPackets)
	}

	c.handleFrame(context.Background(), []byte{0x01})
	if c.badPackets != 2 {
		t.Errorf("expected a truncated envelope to not count, got %d", c.badPackets)
	}

	// A non-query envelope is dropped without reaching a dispatcher.
	envelope := &protocol.Envelope{Type: protocol.PacketMessage}
	c.handleFrame(context.Background(), envelope.Encode())
	if c.badPackets != 2 {
		t.Errorf("expected a non-query envelope to not count, got %d", c.badPackets)
	}
}

func TestWorker_SweepClosesIdleConnections(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 30

	logger := testLogger()
	w := newWorker(0, cfg, logger, nil, nil, nil)

	idleSocket := &fakeNetConn{}
	freshSocket := &fakeNetConn{}

	idle := newConnection(1, idleSocket, cfg, logger, nil, nil, nil, w.events)
	idle.activity.Store(time.Now().Add(-time.Duration(cfg.IdleTimeout) * time.Second).UnixNano())

	fresh := newConnection(2, freshSocket, cfg, logger, nil, nil, nil, w.events)
	fresh.activity.Store(time.Now().Add(-time.Duration(cfg.IdleTimeout-1) * time.Second).UnixNano())

	w.connections[idle.ID()] = idle
	w.connections[fresh.ID()] = fresh

	w.sweepIdle()

	if !idleSocket.closed {
		t.Error("expected the idle connection to be closed")
	}
	if freshSocket.closed {
		t.Error("expected the fresh connection to stay open")
	}
}

// writeTestCertificate generates a self-signed keypair for loopback tests.
func writeTestCertificate(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %s", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "firenet-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %s", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	certOut, err := os.Create(certFile)
	if err != nil {
		t.Fatalf("creating cert file: %s", err)
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("encoding certificate: %s", err)
	}
	_ = certOut.Close()

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %s", err)
	}

	keyFile = filepath.Join(dir, "key.pem")
	keyOut, err := os.Create(keyFile)
	if err != nil {
		t.Fatalf("creating key file: %s", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}); err != nil {
		t.Fatalf("encoding key: %s", err)
	}
	_ = keyOut.Close()

	return certFile, keyFile
}

func TestServer_RegistrationRoundTrip(t *testing.T) {
	logger := testLogger()
	reg := registry.New(logger)

	cfg := testConfig()
	cfg.TLS.CertificateFile, cfg.TLS.KeyFile = writeTestCertificate(t, t.TempDir())

	s := New(cfg, logger, reg, testDeps(logger, reg))
	if err := s.Listen(context.Background()); err != nil {
		t.Fatalf("starting server: %s", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			t.Errorf("stopping server: %s", err)
		}
	}()

	conn, err := tls.Dial("tcp", s.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("dialing server: %s", err)
	}
	defer conn.Close()

	data := &protocol.QueryData{Login: "ley", Password: "hunter2"}
	envelope := protocol.NewQuery(protocol.QueryRegister, data.Encode())
	if _, err := conn.Write(envelope.Encode()); err != nil {
		t.Fatalf("sending register query: %s", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, cfg.MaxPacketSize)
	n, err := conn.Read(buffer)
	if err != nil {
		t.Fatalf("reading response: %s", err)
	}

	response, err := protocol.Decode(buffer[:n])
	if err != nil {
		t.Fatalf("decoding response: %s", err)
	}
	if response.Type != protocol.PacketResult {
		t.Fatalf("expected a result envelope, got type %d", response.Type)
	}

	body, err := protocol.ParseResult(response.Payload)
	if err != nil {
		t.Fatalf("parsing result: %s", err)
	}
	if body.Type != protocol.ResultRegComplete {
		t.Errorf("expected reg_complete, got %q", body.Type)
	}
}

func TestServer_ListenRequiresWorkers(t *testing.T) {
	logger := testLogger()
	reg := registry.New(logger)

	cfg := testConfig()
	cfg.MaxThreads = 0

	s := New(cfg, logger, reg, nil)
	if err := s.Listen(context.Background()); err == nil {
		t.Error("expected Listen to fail without a configured worker count")
	}
}
