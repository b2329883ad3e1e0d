package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnvelope_EncodeDecode(t *testing.T) {
	tests := []struct {
		name     string
		envelope *Envelope
	}{
		{
			name:     "query with payload",
			envelope: NewQuery(QueryAuth, []byte(`<data login="nomad" password="hunter2"></data>`)),
		},
		{
			name:     "query without payload",
			envelope: NewQuery(QueryGetProfile, nil),
		},
		{
			name:     "error envelope",
			envelope: NewError(ErrorAuthFailed, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(tt.envelope.Encode())
			if err != nil {
				t.Fatalf("Decode() returned error: %v", err)
			}
			if diff := cmp.Diff(tt.envelope, decoded); diff != "" {
				t.Errorf("envelope did not survive the round trip; diff:\n%s", diff)
			}
		})
	}
}

func TestDecode_Truncated(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x01}, {0x01, 0x00, 0x00}} {
		if _, err := Decode(data); err == nil {
			t.Errorf("Decode(%v) expected error, got nil", data)
		}
	}
}

func TestNewError_Body(t *testing.T) {
	envelope := NewError(ErrorBuyItemFailed, 4)

	if envelope.Type != PacketError {
		t.Errorf("expected packet type %d, got %d", PacketError, envelope.Type)
	}

	body, err := ParseError(envelope.Payload)
	if err != nil {
		t.Fatalf("ParseError() returned error: %v", err)
	}
	if body.Type != ErrorBuyItemFailed {
		t.Errorf("expected error type %s, got %s", ErrorBuyItemFailed, body.Type)
	}
	if body.Reason != 4 {
		t.Errorf("expected reason 4, got %d", body.Reason)
	}
}

func TestNewUIDResult_Body(t *testing.T) {
	envelope := NewUIDResult(ResultAuthComplete, 100001)

	if envelope.Type != PacketResult {
		t.Errorf("expected packet type %d, got %d", PacketResult, envelope.Type)
	}

	body, err := ParseResult(envelope.Payload)
	if err != nil {
		t.Fatalf("ParseResult() returned error: %v", err)
	}
	if body.Type != ResultAuthComplete {
		t.Errorf("expected result type %s, got %s", ResultAuthComplete, body.Type)
	}

	data, err := ParseQueryData([]byte(body.Inner))
	if err != nil {
		t.Fatalf("ParseQueryData() returned error: %v", err)
	}
	if data.XMLName.Local != "data" {
		t.Errorf("expected data element, got %s", data.XMLName.Local)
	}
	if body.Inner != `<data uid="100001"></data>` {
		t.Errorf("unexpected uid body: %s", body.Inner)
	}
}

func TestQueryData_RoundTrip(t *testing.T) {
	data := &QueryData{
		Login:    "nomad",
		Password: "hunter2",
		Message:  `say "hi" & <wave>`,
		To:       "all",
	}

	parsed, err := ParseQueryData(data.Encode())
	if err != nil {
		t.Fatalf("ParseQueryData() returned error: %v", err)
	}

	if parsed.Login != data.Login || parsed.Password != data.Password {
		t.Errorf("credentials did not survive the round trip: %+v", parsed)
	}
	if parsed.Message != data.Message {
		t.Errorf("message was not escaped correctly: %q", parsed.Message)
	}
}

func TestQueryType_String(t *testing.T) {
	if got := QueryBuyItem.String(); got != "buy_item" {
		t.Errorf("expected buy_item, got %s", got)
	}
	if got := QueryType(999).String(); got != "unknown(999)" {
		t.Errorf("expected unknown(999), got %s", got)
	}
}
