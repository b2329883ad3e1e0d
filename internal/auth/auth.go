package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/model"
)

var (
	ErrUnknownLogin       = errors.New("no account registered for this login")
	ErrInvalidCredentials = errors.New("login/password combination not found")
	ErrAccountBanned      = errors.New("this account has been suspended")
)

// VerifyUser checks the account registered under login and validates that
// it is accessible with the given password.
func VerifyUser(ctx context.Context, worker *db.Worker, login, password string) (*model.User, error) {
	user, err := worker.GetUser(ctx, login)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUnknownLogin
		}
		return nil, err
	}

	if user.Banned {
		return nil, ErrAccountBanned
	}
	if user.Password != HashPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// CreateUser registers a new account under login, returning the stored
// record with its freshly assigned uid.
func CreateUser(ctx context.Context, worker *db.Worker, login, password string) (*model.User, error) {
	return worker.CreateUser(ctx, login, HashPassword(password))
}

// HashPassword returns a password hashed with the server's chosen strategy.
func HashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}
