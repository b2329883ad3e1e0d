package query

import (
	"context"
	"errors"

	"github.com/z060142/FireNET/internal/auth"
	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/protocol"
)

// startMoney is the balance granted to every freshly created profile.
const startMoney = 10000

func handleAuth(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Login == "" || data.Password == "" {
		d.logger.Warnf("client %d sent an auth query with empty credentials", d.connID)
		return
	}

	user, err := auth.VerifyUser(ctx, d.deps.DB, data.Login, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownLogin):
			d.send(protocol.NewError(protocol.ErrorAuthFailed, 0))
		case errors.Is(err, auth.ErrAccountBanned):
			d.send(protocol.NewError(protocol.ErrorAuthFailed, 1))
		case errors.Is(err, auth.ErrInvalidCredentials):
			d.send(protocol.NewError(protocol.ErrorAuthFailed, 2))
		default:
			d.logger.Errorf("client %d: error looking up account %s: %s", d.connID, data.Login, err)
			d.send(protocol.NewError(protocol.ErrorAuthFailed, 0))
		}
		return
	}

	d.uid = user.UID
	d.send(protocol.NewUIDResult(protocol.ResultAuthComplete, user.UID))

	// Returning players get their profile pushed right after the auth
	// result; fresh accounts have none yet.
	profile, err := d.deps.DB.GetProfile(ctx, user.UID)
	if err != nil {
		if !errors.Is(err, db.ErrProfileNotFound) {
			d.logger.Errorf("client %d: error loading profile %d: %s", d.connID, user.UID, err)
		}
		return
	}

	d.setProfile(profile)
	d.sendProfile(profile)
}

func handleRegister(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Login == "" || data.Password == "" {
		d.send(protocol.NewError(protocol.ErrorRegFailed, 0))
		return
	}

	if _, err := d.deps.DB.GetUser(ctx, data.Login); err == nil {
		d.send(protocol.NewError(protocol.ErrorRegFailed, 0))
		return
	} else if !errors.Is(err, db.ErrUserNotFound) {
		d.logger.Errorf("client %d: error checking login %s: %s", d.connID, data.Login, err)
		d.send(protocol.NewError(protocol.ErrorRegFailed, 1))
		return
	}

	user, err := auth.CreateUser(ctx, d.deps.DB, data.Login, data.Password)
	if err != nil {
		d.logger.Errorf("client %d: error creating account %s: %s", d.connID, data.Login, err)
		d.send(protocol.NewError(protocol.ErrorRegFailed, 1))
		return
	}

	d.send(protocol.NewUIDResult(protocol.ResultRegComplete, user.UID))
}

func handleCreateProfile(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Nickname == "" || data.Model == "" {
		d.logger.Warnf("client %d sent a create profile query with empty values", d.connID)
		return
	}

	if d.profile() != nil {
		d.send(protocol.NewError(protocol.ErrorCreateProfileFailed, 2))
		return
	}

	taken, err := d.deps.DB.NicknameTaken(ctx, data.Nickname)
	if err != nil {
		d.logger.Errorf("client %d: error checking nickname %s: %s", d.connID, data.Nickname, err)
		d.send(protocol.NewError(protocol.ErrorCreateProfileFailed, 0))
		return
	}
	if taken {
		d.send(protocol.NewError(protocol.ErrorCreateProfileFailed, 1))
		return
	}

	profile := model.NewProfile(d.uid, data.Nickname, data.Model, startMoney)
	if err := d.deps.DB.SaveProfile(ctx, profile); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, d.uid, err)
		d.send(protocol.NewError(protocol.ErrorCreateProfileFailed, 0))
		return
	}
	if err := d.deps.DB.ClaimNickname(ctx, data.Nickname, d.uid); err != nil {
		d.logger.Errorf("client %d: error claiming nickname %s: %s", d.connID, data.Nickname, err)
		d.send(protocol.NewError(protocol.ErrorCreateProfileFailed, 0))
		return
	}

	d.setProfile(profile)
	d.sendProfile(profile)
}

func handleGetProfile(_ context.Context, d *Dispatcher, _ *protocol.QueryData) {
	profile := d.profile()
	if profile == nil {
		d.send(protocol.NewError(protocol.ErrorGetProfileFailed, 0))
		return
	}
	d.sendProfile(profile)
}
