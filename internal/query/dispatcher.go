// The query package routes decoded client queries to their handlers. One
// Dispatcher exists per connection and carries the session's auth state;
// everything shared between sessions lives in Deps.
package query

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/protocol"
	"github.com/z060142/FireNET/internal/registry"
	"github.com/z060142/FireNET/internal/shop"
)

// Deps bundles the shared services handlers operate on.
type Deps struct {
	Logger   *logrus.Logger
	Registry *registry.Registry
	DB       *db.Worker
	Catalog  *shop.Catalog
}

type handlerFunc func(ctx context.Context, d *Dispatcher, data *protocol.QueryData)

type route struct {
	handle handlerFunc
	// requiresAuth drops the query unless the session has authenticated.
	requiresAuth bool
}

// routes is the query table, built once at startup. Query codes without an
// entry are logged and dropped.
var routes = map[protocol.QueryType]route{
	protocol.QueryAuth:          {handleAuth, false},
	protocol.QueryRegister:      {handleRegister, false},
	protocol.QueryCreateProfile: {handleCreateProfile, true},
	protocol.QueryGetProfile:    {handleGetProfile, true},
	protocol.QueryGetShop:       {handleGetShop, false},
	protocol.QueryBuyItem:       {handleBuyItem, true},
	protocol.QueryRemoveItem:    {handleRemoveItem, true},
	protocol.QuerySendInvite:    {handleSendInvite, true},
	protocol.QueryDeclineInvite: {handleDeclineInvite, true},
	// Accepting an invite is what actually creates the friend relationship.
	protocol.QueryAcceptInvite:    {handleAddFriend, true},
	protocol.QueryRemoveFriend:    {handleRemoveFriend, true},
	protocol.QuerySendChatMessage: {handleChatMessage, true},
}

// Dispatcher routes one connection's queries. It is only ever invoked from
// that connection's read goroutine, so the session fields need no locking.
type Dispatcher struct {
	deps   *Deps
	logger *logrus.Logger
	connID uint64
	conn   registry.Sender

	// uid is the authenticated account, zero while anonymous.
	uid int
}

func NewDispatcher(deps *Deps, connID uint64, conn registry.Sender) *Dispatcher {
	return &Dispatcher{
		deps:   deps,
		logger: deps.Logger,
		connID: connID,
		conn:   conn,
	}
}

// Dispatch parses the query payload and hands it to the matching handler.
// Unknown codes and malformed payloads are dropped without a response; the
// bad-packet accounting for those lives with the connection, not here.
func (d *Dispatcher) Dispatch(ctx context.Context, query protocol.QueryType, payload []byte) {
	rt, ok := routes[query]
	if !ok {
		d.logger.Warnf("client %d sent an unhandled query %s, dropping", d.connID, query)
		return
	}

	if rt.requiresAuth && d.uid <= 0 {
		d.logger.Warnf("client %d sent %s without authorization, dropping", d.connID, query)
		return
	}

	data, err := protocol.ParseQueryData(payload)
	if err != nil {
		d.logger.Warnf("client %d sent a malformed %s query: %s", d.connID, query, err)
		return
	}

	rt.handle(ctx, d, data)
}

func (d *Dispatcher) send(envelope *protocol.Envelope) {
	if err := d.conn.SendEnvelope(envelope); err != nil {
		d.logger.Warnf("send to client %d failed: %s", d.connID, err)
	}
}

func (d *Dispatcher) sendTo(client *registry.Client, envelope *protocol.Envelope) {
	if err := client.Conn.SendEnvelope(envelope); err != nil {
		d.logger.Warnf("send to client %d failed: %s", client.ID, err)
	}
}

func (d *Dispatcher) sendProfile(profile *model.Profile) {
	body, err := profile.ToXML()
	if err != nil {
		d.logger.Errorf("client %d: error rendering profile %d: %s", d.connID, profile.UID, err)
		return
	}
	d.send(protocol.NewResult(protocol.ResultProfileData, body))
}

// profile returns the live profile attached to this session, nil while the
// account has none.
func (d *Dispatcher) profile() *model.Profile {
	return d.deps.Registry.ProfileOf(d.connID)
}

func (d *Dispatcher) setProfile(profile *model.Profile) {
	d.deps.Registry.UpdateProfile(d.connID, profile, model.StatusAuthenticated)
}
