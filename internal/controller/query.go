package controller

import (
	"github.com/google/uuid"

	"matchengine/internal/asset"
	"matchengine/internal/market"
	"matchengine/internal/money"
	"matchengine/internal/snapshot"
	"matchengine/pkg/types"
)

// AssetList is the asset_list read-only RPC.
func (c *Controller) AssetList() []asset.Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assets.List()
}

// BalanceQuery is the balance_query read-only RPC.
func (c *Controller) BalanceQuery(user uuid.UUID, assetID string) (available, frozen money.Decimal) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Get(user, types.Available, assetID), c.ledger.Get(user, types.Frozen, assetID)
}

// OrderDetail is the order_detail read-only RPC.
func (c *Controller) OrderDetail(market_ string, orderID uint64) (*market.Order, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.OrderByID(market_, orderID)
}

// OrderQuery is the order_query read-only RPC: a user's resting orders in
// one market.
func (c *Controller) OrderQuery(market_ string, user uuid.UUID) ([]*market.Order, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.OrdersForUser(market_, user)
}

// OrderBookDepth is the order_book_depth read-only RPC.
func (c *Controller) OrderBookDepth(market_ string, limit int, interval money.Decimal) (asks, bids []market.DepthLevel, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.Depth(market_, limit, interval)
}

// MarketList is the market_list read-only RPC.
func (c *Controller) MarketList() []market.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.AllConfigs()
}

// MarketSummary is the market_summary read-only RPC.
func (c *Controller) MarketSummary(market_ string) (market.Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.Status(market_)
}

// ReloadMarkets is the reload_markets admin RPC: additively registers new
// assets and markets without disturbing already-running ones.
func (c *Controller) ReloadMarkets(assets []asset.Asset, markets []market.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assets.Append(assets); err != nil {
		return err
	}
	return c.engine.AppendMarkets(markets)
}

// DebugDump is the debug_dump debug-only admin RPC: a full, consistent
// snapshot of live state without touching the snapshot store on disk.
func (c *Controller) DebugDump() snapshot.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot.Build(c.seq, c.assets, c.ledger, c.engine)
}

// DebugReset is the debug_reset debug-only admin RPC: wipes every asset,
// market, balance, and resting order, and rewinds every sequence to zero.
// Intended for test harnesses, never for production use.
func (c *Controller) DebugReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets.Reset()
	c.ledger.Reset()
	c.updates.Reset()
	c.engine.Reset()
	c.seq.Reset(0, 0, 0)
}

// DebugReload is the debug_reload debug-only admin RPC: discards live
// state and rebuilds it from st (typically just loaded from the snapshot
// store), as though the process had just restarted from that point.
func (c *Controller) DebugReload(st snapshot.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets.Reset()
	c.ledger.Reset()
	c.updates.Reset()
	c.engine.Reset()
	return snapshot.Restore(st, c.seq, c.assets, c.ledger, c.engine)
}
