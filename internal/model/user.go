package model

import (
	"encoding/xml"
	"fmt"
)

// User contains the login information specific to each registered account.
type User struct {
	UID      int
	Login    string
	Password string
	Banned   bool
}

// userRecord is the key-value store representation of a User, kept
// compatible with the original users:<login> records.
type userRecord struct {
	XMLName  xml.Name `xml:"data"`
	UID      int      `xml:"uid,attr"`
	Login    string   `xml:"login,attr"`
	Password string   `xml:"password,attr"`
	Ban      int      `xml:"ban,attr"`
}

// ToXML serializes the user into its key-value store record.
func (u *User) ToXML() (string, error) {
	record := userRecord{
		UID:      u.UID,
		Login:    u.Login,
		Password: u.Password,
	}
	if u.Banned {
		record.Ban = 1
	}

	data, err := xml.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshaling user %s: %w", u.Login, err)
	}
	return string(data), nil
}

// UserFromXML parses a stored user record.
func UserFromXML(data string) (*User, error) {
	var record userRecord
	if err := xml.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("unmarshaling user record: %w", err)
	}

	return &User{
		UID:      record.UID,
		Login:    record.Login,
		Password: record.Password,
		Banned:   record.Ban == 1,
	}, nil
}
