package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketType is the top-level envelope discriminator.
type PacketType uint16

const (
	PacketEmpty PacketType = iota
	// PacketQuery is a client-initiated request; the payload carries a
	// QueryType followed by an XML body.
	PacketQuery
	// PacketResult wraps a <result> body answering a query.
	PacketResult
	// PacketError wraps an <error> body answering a query.
	PacketError
	// PacketMessage wraps a server-initiated body (chat, invites).
	PacketMessage
)

// QueryType enumerates the client query families. The numeric codes are
// part of the wire contract with existing game clients.
type QueryType uint16

const (
	QueryAuth QueryType = iota
	QueryRegister
	QueryCreateProfile
	QueryGetProfile
	QueryGetShop
	QueryBuyItem
	QueryRemoveItem
	QuerySendInvite
	QueryDeclineInvite
	QueryAcceptInvite
	QueryRemoveFriend
	QuerySendChatMessage
	QueryGetGameServer
)

// HeaderSize is the fixed length of the envelope header: a little-endian
// packet type followed by a query type (zero for non-query envelopes).
const HeaderSize = 4

// ErrTruncatedEnvelope is returned when a frame is shorter than the header.
var ErrTruncatedEnvelope = errors.New("envelope shorter than header")

// Envelope is one discrete framed message unit exchanged over the TLS stream.
type Envelope struct {
	Type    PacketType
	Query   QueryType
	Payload []byte
}

// NewQuery builds a client query envelope. Used by tests and tooling; the
// server itself only decodes queries.
func NewQuery(query QueryType, payload []byte) *Envelope {
	return &Envelope{Type: PacketQuery, Query: query, Payload: payload}
}

// Encode renders the envelope into its wire representation.
func (e *Envelope) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(e.Payload)))
	_ = binary.Write(buf, binary.LittleEndian, uint16(e.Type))
	_ = binary.Write(buf, binary.LittleEndian, uint16(e.Query))
	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses one received frame into an Envelope.
func Decode(data []byte) (*Envelope, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedEnvelope, len(data))
	}

	envelope := &Envelope{
		Type:  PacketType(binary.LittleEndian.Uint16(data[0:2])),
		Query: QueryType(binary.LittleEndian.Uint16(data[2:4])),
	}
	if len(data) > HeaderSize {
		envelope.Payload = make([]byte, len(data)-HeaderSize)
		copy(envelope.Payload, data[HeaderSize:])
	}
	return envelope, nil
}

// String names the query family for logging.
func (q QueryType) String() string {
	switch q {
	case QueryAuth:
		return "auth"
	case QueryRegister:
		return "register"
	case QueryCreateProfile:
		return "create_profile"
	case QueryGetProfile:
		return "get_profile"
	case QueryGetShop:
		return "get_shop"
	case QueryBuyItem:
		return "buy_item"
	case QueryRemoveItem:
		return "remove_item"
	case QuerySendInvite:
		return "send_invite"
	case QueryDeclineInvite:
		return "decline_invite"
	case QueryAcceptInvite:
		return "accept_invite"
	case QueryRemoveFriend:
		return "remove_friend"
	case QuerySendChatMessage:
		return "send_chat_msg"
	case QueryGetGameServer:
		return "get_server"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(q))
	}
}
