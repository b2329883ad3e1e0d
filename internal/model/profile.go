package model

import (
	"encoding/xml"
	"fmt"
)

// Status describes how far through the session flow a connected client is.
type Status int

const (
	// StatusAnonymous is a connection that has not authenticated yet.
	StatusAnonymous Status = iota
	// StatusAuthenticated is a logged-in client with a usable profile.
	StatusAuthenticated
	// StatusInGame is an authenticated client currently on a game server.
	StatusInGame
)

// Item is one inventory entry on a player's profile.
type Item struct {
	Name        string `xml:"name,attr"`
	Icon        string `xml:"icon,attr"`
	Description string `xml:"description,attr"`
}

// Friend is one entry in a player's friend list.
type Friend struct {
	Name   string `xml:"name,attr"`
	UID    int    `xml:"uid,attr"`
	Status int    `xml:"status,attr"`
}

// Achievement is one unlocked achievement on a player's profile.
type Achievement struct {
	Name string `xml:"name,attr"`
}

// Stats carries a player's gameplay counters. The client reads them off
// the attributes of a single flat <stats/> element, so this must not be
// rendered as a wrapper with children.
type Stats struct {
	Kills  int    `xml:"kills,attr"`
	Deaths int    `xml:"deaths,attr"`
	KD     string `xml:"kd,attr"`
}

// Profile is the persisted player record. The XML layout is fixed by the
// game client, which reads the profile element's attributes and scans for
// item, friend, and stat children.
type Profile struct {
	XMLName  xml.Name `xml:"profile"`
	UID      int      `xml:"id,attr"`
	Nickname string   `xml:"nickname,attr"`
	Model    string   `xml:"model,attr"`
	Money    int      `xml:"money,attr"`
	XP       int      `xml:"xp,attr"`
	Level    int      `xml:"lvl,attr"`

	Items        []Item        `xml:"items>item"`
	Friends      []Friend      `xml:"friends>friend"`
	Achievements []Achievement `xml:"achievements>achievement"`
	Stats        Stats         `xml:"stats"`
}

// NewProfile returns a freshly created profile with the starting stat block.
func NewProfile(uid int, nickname, model string, startMoney int) *Profile {
	return &Profile{
		UID:      uid,
		Nickname: nickname,
		Model:    model,
		Money:    startMoney,
		Stats:    Stats{Kills: 0, Deaths: 0, KD: "0"},
	}
}

// Clone returns a deep copy. Mutating handlers work on a clone and swap it
// in only after the store write succeeds.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.Items = append([]Item(nil), p.Items...)
	clone.Friends = append([]Friend(nil), p.Friends...)
	clone.Achievements = append([]Achievement(nil), p.Achievements...)
	return &clone
}

// HasItem reports whether an item with the given name is in the inventory.
func (p *Profile) HasItem(name string) bool {
	for _, item := range p.Items {
		if item.Name == name {
			return true
		}
	}
	return false
}

// AddItem appends an item to the inventory.
func (p *Profile) AddItem(item Item) {
	p.Items = append(p.Items, item)
}

// RemoveItem removes the item with the given name from the inventory,
// reporting whether it was present.
func (p *Profile) RemoveItem(name string) bool {
	for i, item := range p.Items {
		if item.Name == name {
			p.Items = append(p.Items[:i], p.Items[i+1:]...)
			return true
		}
	}
	return false
}

// HasFriend reports whether a friend with the given name is in the friend list.
func (p *Profile) HasFriend(name string) bool {
	for _, f := range p.Friends {
		if f.Name == name {
			return true
		}
	}
	return false
}

// AddFriend appends an entry to the friend list.
func (p *Profile) AddFriend(f Friend) {
	p.Friends = append(p.Friends, f)
}

// RemoveFriend removes the friend with the given name, reporting whether
// they were present.
func (p *Profile) RemoveFriend(name string) bool {
	for i, f := range p.Friends {
		if f.Name == name {
			p.Friends = append(p.Friends[:i], p.Friends[i+1:]...)
			return true
		}
	}
	return false
}

// ToXML serializes the profile into the client wire representation.
func (p *Profile) ToXML() (string, error) {
	data, err := xml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling profile %d: %w", p.UID, err)
	}
	return string(data), nil
}

// ProfileFromXML parses a stored profile record.
func ProfileFromXML(data string) (*Profile, error) {
	var profile Profile
	if err := xml.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}
	return &profile, nil
}
