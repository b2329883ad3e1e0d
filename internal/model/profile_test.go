package model

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func testProfile() *Profile {
	p := NewProfile(100001, "Nomad", "soldier", 1000)
	p.AddItem(Item{Name: "pistol", Icon: "pistol.png", Description: "Sidearm"})
	p.AddFriend(Friend{Name: "Ghost", UID: 100002, Status: 0})
	return p
}

func TestProfile_ItemOperations(t *testing.T) {
	p := testProfile()

	if !p.HasItem("pistol") {
		t.Error("expected profile to contain pistol")
	}
	if p.HasItem("rifle") {
		t.Error("did not expect profile to contain rifle")
	}

	if !p.RemoveItem("pistol") {
		t.Error("expected RemoveItem to report the item was present")
	}
	if p.RemoveItem("pistol") {
		t.Error("expected second RemoveItem to be a no-op")
	}
	if p.HasItem("pistol") {
		t.Error("expected pistol to be gone after removal")
	}
}

func TestProfile_FriendOperations(t *testing.T) {
	p := testProfile()

	if !p.HasFriend("Ghost") {
		t.Error("expected profile to contain friend Ghost")
	}

	p.AddFriend(Friend{Name: "Viper", UID: 100003})
	if !p.HasFriend("Viper") {
		t.Error("expected profile to contain friend Viper")
	}

	if !p.RemoveFriend("Ghost") {
		t.Error("expected RemoveFriend to report the friend was present")
	}
	if p.RemoveFriend("Ghost") {
		t.Error("expected second RemoveFriend to be a no-op")
	}
}

func TestProfile_XMLRoundTrip(t *testing.T) {
	p := testProfile()

	data, err := p.ToXML()
	if err != nil {
		t.Fatalf("ToXML() returned error: %v", err)
	}

	parsed, err := ProfileFromXML(data)
	if err != nil {
		t.Fatalf("ProfileFromXML() returned error: %v", err)
	}

	if diff := cmp.Diff(p, parsed, cmpopts.IgnoreFields(Profile{}, "XMLName")); diff != "" {
		t.Errorf("profile did not survive the round trip; diff:\n%s", diff)
	}
}

func TestProfile_StatsRenderFlat(t *testing.T) {
	p := NewProfile(100001, "Nomad", "soldier", 1000)

	data, err := p.ToXML()
	if err != nil {
		t.Fatalf("ToXML() returned error: %v", err)
	}

	// The client only reads a <stats> element that carries the counters as
	// attributes; a wrapper with <stat> children is ignored outright.
	if !strings.Contains(data, `<stats kills="0" deaths="0" kd="0">`) {
		t.Errorf("expected a flat attribute-bearing stats element, got %q", data)
	}
	if strings.Contains(data, "<stat ") {
		t.Errorf("stats must not be rendered as child elements, got %q", data)
	}
}

func TestUser_XMLRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		user *User
	}{
		{
			name: "unbanned",
			user: &User{UID: 100001, Login: "nomad", Password: "deadbeef"},
		},
		{
			name: "banned",
			user: &User{UID: 100002, Login: "cheater", Password: "cafebabe", Banned: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.user.ToXML()
			if err != nil {
				t.Fatalf("ToXML() returned error: %v", err)
			}

			parsed, err := UserFromXML(data)
			if err != nil {
				t.Fatalf("UserFromXML() returned error: %v", err)
			}

			if diff := cmp.Diff(tt.user, parsed); diff != "" {
				t.Errorf("user did not survive the round trip; diff:\n%s", diff)
			}
		})
	}
}
