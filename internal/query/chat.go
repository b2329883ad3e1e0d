package query

import (
	"context"
	"errors"

	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/protocol"
)

func handleChatMessage(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Message == "" || data.To == "" {
		d.logger.Warnf("client %d sent a chat query with empty values", d.connID)
		return
	}

	profile := d.profile()
	if profile == nil || profile.Nickname == "" {
		d.logger.Warnf("client %d can't chat without a profile", d.connID)
		return
	}

	if data.To == profile.Nickname {
		d.logger.Debugf("client %d tried to message themselves, dropping", d.connID)
		return
	}

	if data.To == "all" {
		d.deps.Registry.Broadcast(protocol.NewGlobalChat(data.Message, profile.Nickname))
		return
	}

	uid, err := d.deps.DB.UIDByNickname(ctx, data.To)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			d.logger.Errorf("client %d: error resolving nickname %s: %s", d.connID, data.To, err)
		} else {
			d.logger.Debugf("client %d messaged an unknown user %s", d.connID, data.To)
		}
		return
	}

	receiver, online := d.deps.Registry.GetByUID(uid)
	if !online {
		d.logger.Debugf("client %d messaged an offline user %s", d.connID, data.To)
		return
	}

	d.sendTo(receiver, protocol.NewPrivateChat(data.Message, profile.Nickname))
}
