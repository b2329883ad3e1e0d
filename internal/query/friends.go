package query

import (
	"context"
	"errors"

	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/protocol"
)

// inviteFriend is the only invite type with server-side behavior; game and
// clan invites are reserved codes in the client protocol.
const inviteFriend = "friend_invite"

func handleSendInvite(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	profile := d.profile()
	if profile == nil || profile.Nickname == "" || data.To == "" || data.InviteType == "" {
		d.logger.Warnf("client %d sent an invite query with empty values", d.connID)
		return
	}
	if data.InviteType != inviteFriend {
		d.logger.Debugf("client %d sent an unsupported invite type %q", d.connID, data.InviteType)
		return
	}

	uid, err := d.deps.DB.UIDByNickname(ctx, data.To)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			d.logger.Errorf("client %d: error resolving nickname %s: %s", d.connID, data.To, err)
		}
		d.send(protocol.NewError(protocol.ErrorInviteFailed, 0))
		return
	}

	receiver, online := d.deps.Registry.GetByUID(uid)
	if !online {
		d.send(protocol.NewError(protocol.ErrorInviteFailed, 1))
		return
	}

	d.sendTo(receiver, protocol.NewFriendInvite(profile.Nickname))
}

func handleDeclineInvite(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	profile := d.profile()
	if profile == nil || profile.Nickname == "" || data.To == "" || data.InviteType == "" {
		d.logger.Warnf("client %d sent a decline invite query with empty values", d.connID)
		return
	}
	if data.InviteType != inviteFriend {
		d.logger.Debugf("client %d sent an unsupported invite type %q", d.connID, data.InviteType)
		return
	}

	uid, err := d.deps.DB.UIDByNickname(ctx, data.To)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			d.logger.Errorf("client %d: error resolving nickname %s: %s", d.connID, data.To, err)
		}
		return
	}

	// The decline goes back to the original inviter; nobody cares if they
	// have already disconnected.
	receiver, online := d.deps.Registry.GetByUID(uid)
	if !online {
		d.logger.Debugf("client %d declined an invite from an offline user %s", d.connID, data.To)
		return
	}

	d.sendTo(receiver, protocol.NewError(protocol.ErrorInviteFailed, 2))
}

// handleAddFriend finalizes an accepted invite: both profiles gain a friend
// entry and both online parties get their refreshed profile.
func handleAddFriend(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Name == "" {
		d.logger.Warnf("client %d sent an add friend query with an empty name", d.connID)
		return
	}

	profile := d.profile()
	if profile == nil || profile.Nickname == "" {
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 1))
		return
	}

	friendUID, err := d.deps.DB.UIDByNickname(ctx, data.Name)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			d.logger.Errorf("client %d: error resolving nickname %s: %s", d.connID, data.Name, err)
		}
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 0))
		return
	}

	friendProfile, err := d.deps.DB.GetProfile(ctx, friendUID)
	if err != nil {
		d.logger.Errorf("client %d: error loading profile %d: %s", d.connID, friendUID, err)
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 1))
		return
	}

	if profile.HasFriend(data.Name) {
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 4))
		return
	}
	if profile.Nickname == data.Name {
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 3))
		return
	}

	next := profile.Clone()
	next.AddFriend(model.Friend{Name: data.Name, UID: friendUID})

	nextFriend := friendProfile.Clone()
	nextFriend.AddFriend(model.Friend{Name: profile.Nickname, UID: profile.UID})

	if err := d.deps.DB.SaveProfile(ctx, next); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, next.UID, err)
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 2))
		return
	}
	if err := d.deps.DB.SaveProfile(ctx, nextFriend); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, nextFriend.UID, err)
		d.send(protocol.NewError(protocol.ErrorAddFriendFailed, 2))
		return
	}

	d.setProfile(next)
	d.sendProfile(next)

	d.refreshFriend(friendUID, nextFriend)
}

func handleRemoveFriend(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Name == "" {
		d.logger.Warnf("client %d sent a remove friend query with an empty name", d.connID)
		return
	}

	profile := d.profile()
	if profile == nil || profile.Nickname == "" {
		d.send(protocol.NewError(protocol.ErrorRemoveFriendFailed, 0))
		return
	}

	friendUID, err := d.deps.DB.UIDByNickname(ctx, data.Name)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			d.logger.Errorf("client %d: error resolving nickname %s: %s", d.connID, data.Name, err)
		}
		d.send(protocol.NewError(protocol.ErrorRemoveFriendFailed, 0))
		return
	}

	friendProfile, err := d.deps.DB.GetProfile(ctx, friendUID)
	if err != nil {
		d.logger.Errorf("client %d: error loading profile %d: %s", d.connID, friendUID, err)
		d.send(protocol.NewError(protocol.ErrorRemoveFriendFailed, 0))
		return
	}

	if !profile.HasFriend(data.Name) {
		d.send(protocol.NewError(protocol.ErrorRemoveFriendFailed, 2))
		return
	}

	next := profile.Clone()
	next.RemoveFriend(data.Name)

	nextFriend := friendProfile.Clone()
	nextFriend.RemoveFriend(profile.Nickname)

	if err := d.deps.DB.SaveProfile(ctx, next); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, next.UID, err)
		d.send(protocol.NewError(protocol.ErrorRemoveFriendFailed, 1))
		return
	}
	if err := d.deps.DB.SaveProfile(ctx, nextFriend); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, nextFriend.UID, err)
		d.send(protocol.NewError(protocol.ErrorRemoveFriendFailed, 1))
		return
	}

	d.setProfile(next)
	d.sendProfile(next)

	d.refreshFriend(friendUID, nextFriend)
}

// refreshFriend pushes an updated profile to the other party when they are
// online, keeping their registry entry in sync.
func (d *Dispatcher) refreshFriend(uid int, profile *model.Profile) {
	client, online := d.deps.Registry.RefreshProfile(uid, profile)
	if !online {
		return
	}

	body, err := profile.ToXML()
	if err != nil {
		d.logger.Errorf("error rendering profile %d: %s", profile.UID, err)
		return
	}
	d.sendTo(client, protocol.NewResult(protocol.ResultProfileData, body))
}
