package query

import (
	"context"

	"github.com/z060142/FireNET/internal/model"
	"github.com/z060142/FireNET/internal/protocol"
)

func handleGetShop(_ context.Context, d *Dispatcher, _ *protocol.QueryData) {
	catalogXML, err := d.deps.Catalog.XML()
	if err != nil {
		d.logger.Errorf("client %d: error loading the shop catalog: %s", d.connID, err)
		d.send(protocol.NewError(protocol.ErrorGetShopItemsFailed, 0))
		return
	}

	// The catalog body goes out as-is; clients parse the <shop> element
	// directly.
	d.send(&protocol.Envelope{Type: protocol.PacketResult, Payload: []byte(catalogXML)})
}

func handleBuyItem(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Item == "" {
		d.logger.Warnf("client %d sent a buy item query with an empty item name", d.connID)
		return
	}

	profile := d.profile()
	if profile == nil {
		d.send(protocol.NewError(protocol.ErrorBuyItemFailed, 0))
		return
	}

	item, ok, err := d.deps.Catalog.ItemByName(data.Item)
	if err != nil || !ok {
		if err != nil {
			d.logger.Errorf("client %d: error loading the shop catalog: %s", d.connID, err)
		}
		d.send(protocol.NewError(protocol.ErrorBuyItemFailed, 1))
		return
	}

	if profile.HasItem(item.Name) {
		d.send(protocol.NewError(protocol.ErrorBuyItemFailed, 4))
		return
	}
	if profile.Level < item.MinLevel {
		d.send(protocol.NewError(protocol.ErrorBuyItemFailed, 5))
		return
	}
	if profile.Money < item.Cost {
		d.send(protocol.NewError(protocol.ErrorBuyItemFailed, 2))
		return
	}

	next := profile.Clone()
	next.Money -= item.Cost
	next.AddItem(model.Item{Name: item.Name, Icon: item.Icon, Description: item.Description})

	if err := d.deps.DB.SaveProfile(ctx, next); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, next.UID, err)
		d.send(protocol.NewError(protocol.ErrorBuyItemFailed, 3))
		return
	}

	d.setProfile(next)
	d.sendProfile(next)
}

func handleRemoveItem(ctx context.Context, d *Dispatcher, data *protocol.QueryData) {
	if data.Name == "" {
		d.logger.Warnf("client %d sent a remove item query with an empty item name", d.connID)
		return
	}

	profile := d.profile()
	if profile == nil {
		d.send(protocol.NewError(protocol.ErrorRemoveItemFailed, 0))
		return
	}

	if !profile.HasItem(data.Name) {
		d.send(protocol.NewError(protocol.ErrorRemoveItemFailed, 3))
		return
	}

	// Only catalog items can be dropped; anything else in the inventory is
	// treated as stale data.
	item, ok, err := d.deps.Catalog.ItemByName(data.Name)
	if err != nil || !ok {
		if err != nil {
			d.logger.Errorf("client %d: error loading the shop catalog: %s", d.connID, err)
		}
		d.send(protocol.NewError(protocol.ErrorRemoveItemFailed, 2))
		return
	}

	next := profile.Clone()
	next.RemoveItem(item.Name)

	if err := d.deps.DB.SaveProfile(ctx, next); err != nil {
		d.logger.Errorf("client %d: error saving profile %d: %s", d.connID, next.UID, err)
		d.send(protocol.NewError(protocol.ErrorRemoveItemFailed, 1))
		return
	}

	d.setProfile(next)
	d.sendProfile(next)
}
