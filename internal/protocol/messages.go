package protocol

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Result type names sent back to clients. These strings are part of the
// wire contract and must not change.
const (
	ResultAuthComplete = "auth_complete"
	ResultRegComplete  = "reg_complete"
	ResultProfileData  = "profile_data"
)

// Error type names, scoped per query family.
const (
	ErrorAuthFailed          = "auth_failed"
	ErrorRegFailed           = "reg_failed"
	ErrorCreateProfileFailed = "create_profile_failed"
	ErrorGetProfileFailed    = "get_profile_failed"
	ErrorGetShopItemsFailed  = "get_shop_items_failed"
	ErrorBuyItemFailed       = "buy_item_failed"
	ErrorRemoveItemFailed    = "remove_item_failed"
	ErrorInviteFailed        = "invite_failed"
	ErrorAddFriendFailed     = "add_friend_failed"
	ErrorRemoveFriendFailed  = "remove_friend_failed"
)

// QueryData is the parsed <data> body of a client query. Each query family
// reads the attributes it needs; absent attributes decode to empty strings.
type QueryData struct {
	XMLName    xml.Name `xml:"data"`
	Login      string   `xml:"login,attr"`
	Password   string   `xml:"password,attr"`
	Nickname   string   `xml:"nickname,attr"`
	Model      string   `xml:"model,attr"`
	Item       string   `xml:"item,attr"`
	Name       string   `xml:"name,attr"`
	Message    string   `xml:"message,attr"`
	To         string   `xml:"to,attr"`
	InviteType string   `xml:"invite_type,attr"`
}

// ParseQueryData decodes a query payload's <data> element. Some queries,
// like fetching the profile or the shop, carry no body at all; an empty
// payload decodes to a zero-value QueryData rather than an error.
func ParseQueryData(payload []byte) (*QueryData, error) {
	var data QueryData
	if len(bytes.TrimSpace(payload)) == 0 {
		return &data, nil
	}
	if err := xml.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("parsing query data: %w", err)
	}
	return &data, nil
}

// Encode renders the query data back into a payload. Used by tests and
// client tooling.
func (d *QueryData) Encode() []byte {
	data, _ := xml.Marshal(d)
	return data
}

type errorBody struct {
	XMLName xml.Name `xml:"error"`
	Type    string   `xml:"type,attr"`
	Reason  int      `xml:"reason,attr"`
}

// NewError builds an error envelope carrying a (type, reason code) pair.
func NewError(errorType string, reason int) *Envelope {
	body, _ := xml.Marshal(errorBody{Type: errorType, Reason: reason})
	return &Envelope{Type: PacketError, Payload: body}
}

// NewResult builds a result envelope. body must already be rendered XML
// (a profile, a <data> element, or empty).
func NewResult(resultType, body string) *Envelope {
	payload := fmt.Sprintf("<result type=%q>%s</result>", resultType, body)
	return &Envelope{Type: PacketResult, Payload: []byte(payload)}
}

// NewUIDResult builds the <data uid='N'/> result body used by the auth and
// registration flows.
func NewUIDResult(resultType string, uid int) *Envelope {
	return NewResult(resultType, fmt.Sprintf("<data uid=\"%d\"></data>", uid))
}

type inviteBody struct {
	XMLName xml.Name `xml:"invite"`
	Type    string   `xml:"type,attr"`
	From    string   `xml:"from,attr"`
}

// NewFriendInvite builds the envelope relayed to an invite receiver.
func NewFriendInvite(from string) *Envelope {
	body, _ := xml.Marshal(inviteBody{Type: "friend_invite", From: from})
	return &Envelope{Type: PacketMessage, Payload: body}
}

type chatMessage struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
	From    string `xml:"from,attr"`
}

type chatBody struct {
	XMLName xml.Name    `xml:"chat"`
	Message chatMessage `xml:"message"`
}

// NewGlobalChat builds a chat envelope broadcast to all authenticated clients.
func NewGlobalChat(message, from string) *Envelope {
	body, _ := xml.Marshal(chatBody{Message: chatMessage{Type: "global", Message: message, From: from}})
	return &Envelope{Type: PacketMessage, Payload: body}
}

// NewPrivateChat builds a chat envelope delivered to a single receiver.
func NewPrivateChat(message, from string) *Envelope {
	body, _ := xml.Marshal(chatBody{Message: chatMessage{Type: "private", Message: message, From: from}})
	return &Envelope{Type: PacketMessage, Payload: body}
}

// ResultBody is the parsed <result> element. Used by tests and client tooling.
type ResultBody struct {
	XMLName xml.Name `xml:"result"`
	Type    string   `xml:"type,attr"`
	Inner   string   `xml:",innerxml"`
}

// ErrorBody is the parsed <error> element. Used by tests and client tooling.
type ErrorBody struct {
	XMLName xml.Name `xml:"error"`
	Type    string   `xml:"type,attr"`
	Reason  int      `xml:"reason,attr"`
}

// ParseResult decodes a result envelope payload.
func ParseResult(payload []byte) (*ResultBody, error) {
	var body ResultBody
	if err := xml.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parsing result body: %w", err)
	}
	return &body, nil
}

// ParseError decodes an error envelope payload.
func ParseError(payload []byte) (*ErrorBody, error) {
	var body ErrorBody
	if err := xml.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parsing error body: %w", err)
	}
	return &body, nil
}
