// Package storage defines the narrow key-value contract the rest of the
// server persists through. Keys are namespaced with colon-separated
// prefixes shared with existing FireNET deployments.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is the persistence contract consumed by the query handlers.
type Store interface {
	// Get returns the value under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Close releases the underlying connection resources.
	Close() error
}

// UIDCounterKey holds the most recently assigned account uid.
const UIDCounterKey = "uids"

// UserKey returns the key of an account record.
func UserKey(login string) string {
	return fmt.Sprintf("users:%s", login)
}

// NicknameKey returns the key of the nickname -> uid index entry.
func NicknameKey(nickname string) string {
	return fmt.Sprintf("nicknames:%s", nickname)
}

// ProfileKey returns the key of a player profile record.
func ProfileKey(uid int) string {
	return fmt.Sprintf("profiles:%d", uid)
}
