// Package db mediates all persistence for the query handlers: player
// profiles, the nickname index, and the uid counter always live in the
// key-value store, while account records live either alongside them or in
// a relational users table, depending on configuration.
package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/storage"
)

// FirstUID is assigned to the first account ever registered. Subsequent
// uids increase monotonically and are never reused.
const FirstUID = 100001

// ErrUserNotFound is returned when no account exists for a login.
var ErrUserNotFound = errors.New("user not found")

// ErrProfileNotFound is returned when a uid has no stored profile.
var ErrProfileNotFound = errors.New("profile not found")

// Worker owns access to the backing stores. A nil sql handle means account
// records are kept in the key-value store.
type Worker struct {
	store storage.Store
	sql   *gorm.DB

	// uidMu serializes the counter's read-modify-write so concurrent
	// registrations never allocate the same uid.
	uidMu sync.Mutex
}

// NewWorker returns a Worker persisting accounts in the key-value store.
func NewWorker(store storage.Store) *Worker {
	return &Worker{store: store}
}

// NewSQLWorker returns a Worker persisting accounts in the relational
// users table while keeping profiles in the key-value store.
func NewSQLWorker(store storage.Store, sqlDB *gorm.DB) *Worker {
	return &Worker{store: store, sql: sqlDB}
}

// GetUser looks up the account registered under login.
func (w *Worker) GetUser(ctx context.Context, login string) (*model.User, error) {
	if w.sql != nil {
		user, err := findUserRow(w.sql, login)
		if err != nil {
			return nil, fmt.Errorf("finding user %s: %w", login, err)
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		return user, nil
	}

	record, err := w.store.Get(ctx, storage.UserKey(login))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user %s: %w", login, err)
	}
	return model.UserFromXML(record)
}

// CreateUser allocates the next uid and persists a new account record.
// The password is expected to already be hashed.
func (w *Worker) CreateUser(ctx context.Context, login, password string) (*model.User, error) {
	uid, err := w.NextUID(ctx)
	if err != nil {
		return nil, err
	}

	user := &model.User{UID: uid, Login: login, Password: password}

	if w.sql != nil {
		if err := createUserRow(w.sql, user); err != nil {
			return nil, fmt.Errorf("creating user %s: %w", login, err)
		}
		return user, nil
	}

	record, err := user.ToXML()
	if err != nil {
		return nil, err
	}
	if err := w.store.Set(ctx, storage.UserKey(login), record); err != nil {
		return nil, fmt.Errorf("creating user %s: %w", login, err)
	}
	return user, nil
}

// SetBanned flips the suspension flag on an account record.
func (w *Worker) SetBanned(ctx context.Context, login string, banned bool) error {
	user, err := w.GetUser(ctx, login)
	if err != nil {
		return err
	}
	user.Banned = banned

	if w.sql != nil {
		if err := updateUserRow(w.sql, user); err != nil {
			return fmt.Errorf("updating user %s: %w", login, err)
		}
		return nil
	}

	record, err := user.ToXML()
	if err != nil {
		return err
	}
	if err := w.store.Set(ctx, storage.UserKey(login), record); err != nil {
		return fmt.Errorf("updating user %s: %w", login, err)
	}
	return nil
}

// NextUID advances the uid counter and returns the newly assigned value.
// Allocation is serialized; no two calls ever return the same uid.
func (w *Worker) NextUID(ctx context.Context) (int, error) {
	w.uidMu.Lock()
	defer w.uidMu.Unlock()

	current, err := w.store.Get(ctx, storage.UIDCounterKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("reading uid counter: %w", err)
	}

	next := FirstUID
	if err == nil {
		parsed, convErr := strconv.Atoi(current)
		if convErr != nil {
			return 0, fmt.Errorf("corrupt uid counter %q: %w", current, convErr)
		}
		next = parsed + 1
	}

	if err := w.store.Set(ctx, storage.UIDCounterKey, strconv.Itoa(next)); err != nil {
		return 0, fmt.Errorf("advancing uid counter: %w", err)
	}
	return next, nil
}

// GetProfile loads the profile stored for uid.
func (w *Worker) GetProfile(ctx context.Context, uid int) (*model.Profile, error) {
	record, err := w.store.Get(ctx, storage.ProfileKey(uid))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("loading profile %d: %w", uid, err)
	}
	return model.ProfileFromXML(record)
}

// SaveProfile persists the profile under its uid key.
func (w *Worker) SaveProfile(ctx context.Context, profile *model.Profile) error {
	record, err := profile.ToXML()
	if err != nil {
		return err
	}
	if err := w.store.Set(ctx, storage.ProfileKey(profile.UID), record); err != nil {
		return fmt.Errorf("saving profile %d: %w", profile.UID, err)
	}
	return nil
}

// UIDByNickname resolves a nickname through the nickname index, returning
// ErrUserNotFound for unclaimed nicknames.
func (w *Worker) UIDByNickname(ctx context.Context, nickname string) (int, error) {
	value, err := w.store.Get(ctx, storage.NicknameKey(nickname))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("resolving nickname %s: %w", nickname, err)
	}

	uid, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt nickname index entry %q: %w", value, err)
	}
	return uid, nil
}

// NicknameTaken reports whether the nickname index already has an entry.
func (w *Worker) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	_, err := w.UIDByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ClaimNickname writes the nickname -> uid index entry. A claimed nickname
// is never released.
func (w *Worker) ClaimNickname(ctx context.Context, nickname string, uid int) error {
	if err := w.store.Set(ctx, storage.NicknameKey(nickname), strconv.Itoa(uid)); err != nil {
		return fmt.Errorf("claiming nickname %s: %w", nickname, err)
	}
	return nil
}
