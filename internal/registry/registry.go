// Package registry holds the process-wide mapping from live connections to
// session state. It is the only state shared between the server's workers,
// so every access goes through the registry's lock.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/protocol"
)

// Sender is the outbound half of a connection, implemented by
// server.Connection. Registered clients are written to through it.
type Sender interface {
	SendEnvelope(envelope *protocol.Envelope) error
}

// Client represents one live, possibly unauthenticated connection.
type Client struct {
	// ID is the connection identity, unique for the connection's lifetime.
	ID uint64
	// Conn writes envelopes back to the peer.
	Conn Sender
	// Profile is nil until authentication succeeds.
	Profile *model.Profile
	// Status tracks the session flow state.
	Status model.Status
}

// Registry is the authoritative client list. All mutation is synchronized;
// a connection is added exactly once on handshake completion and removed
// exactly once on disconnect.
type Registry struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	clients map[uint64]*Client
}

// New returns an empty registry.
func New(logger *logrus.Logger) *Registry {
	return &Registry{
		logger:  logger,
		clients: make(map[uint64]*Client),
	}
}

// Add registers a client. Adding a connection that is already registered
// is a no-op with a logged warning.
func (r *Registry) Add(client *Client) {
	if client.Conn == nil {
		r.logger.Warn("can't add client: connection is nil")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.ID]; ok {
		r.logger.Warnf("can't add client %d: already registered", client.ID)
		return
	}

	r.logger.Debugf("adding client %d", client.ID)
	r.clients[client.ID] = client
}

// Remove drops a client from the registry. Removing a connection that is
// not registered is a no-op with a logged warning.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		r.logger.Warnf("can't remove client %d: not found", id)
		return
	}

	r.logger.Debugf("removing client %d", id)
	delete(r.clients, id)
}

// Count returns the number of registered clients; the server's
// max-connections check reads it on every accept.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Get returns the client registered under the connection id.
func (r *Registry) Get(id uint64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	return client, ok
}

// GetByUID returns the client whose attached profile carries uid.
func (r *Registry) GetByUID(uid int) (*Client, bool) {
	if uid <= 0 {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, client := range r.clients {
		if client.Profile != nil && client.Profile.UID == uid {
			return client, true
		}
	}
	return nil, false
}

// ProfileOf returns the profile attached to the connection, nil while the
// account has none or the connection is gone. The read happens under the
// registry lock; profiles are replaced wholesale via UpdateProfile, never
// mutated in place, so the returned pointer stays safe to read.
func (r *Registry) ProfileOf(id uint64) *model.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil
	}
	return client.Profile
}

// RefreshProfile swaps in a new profile for the client whose current profile
// carries uid, keeping their session status, and reports whether such a
// client is online.
func (r *Registry) RefreshProfile(uid int, profile *model.Profile) (*Client, bool) {
	if uid <= 0 || profile == nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		if client.Profile != nil && client.Profile.UID == uid {
			client.Profile = profile
			r.logger.Debugf("client %d refreshed", client.ID)
			return client, true
		}
	}
	return nil, false
}

// UpdateProfile attaches a profile to a registered client. Updating an
// unregistered client or attaching a nil profile is a no-op with a logged
// warning.
func (r *Registry) UpdateProfile(id uint64, profile *model.Profile, status model.Status) {
	if profile == nil {
		r.logger.Warnf("can't update client %d: profile is nil", id)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		r.logger.Warnf("can't update client %d: not found", id)
		return
	}

	client.Profile = profile
	client.Status = status
	r.logger.Debugf("client %d updated", id)
}

// Broadcast writes the envelope to every authenticated client.
// Unauthenticated clients never receive broadcasts. Delivery order across
// recipients is unspecified.
func (r *Registry) Broadcast(envelope *protocol.Envelope) {
	for _, client := range r.authenticatedSnapshot() {
		if err := client.Conn.SendEnvelope(envelope); err != nil {
			r.logger.Warnf("broadcast to client %d failed: %s", client.ID, err)
		}
	}
}

// authenticatedSnapshot copies the authenticated client set so sends happen
// outside the registry lock.
func (r *Registry) authenticatedSnapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		if client.Profile != nil {
			snapshot = append(snapshot, client)
		}
	}
	return snapshot
}
