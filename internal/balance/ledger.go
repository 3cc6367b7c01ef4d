// Package balance implements the per-user balance ledger (C4) and the
// idempotent balance-update controller built on top of it (C5).
package balance

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"matchengine/internal/asset"
	"matchengine/internal/cerr"
	"matchengine/internal/money"
	"matchengine/pkg/types"
)

type key struct {
	user      uuid.UUID
	partition types.Partition
	asset     string
}

// History is the record UpdateController emits for a deposit, withdraw, or
// transfer leg. Trade settlement and intra-order freeze/unfreeze change
// balances without emitting one.
type History struct {
	UserID     uuid.UUID
	Asset      string
	Business   string
	BusinessID uint64
	Change     money.Decimal
	Balance    money.Decimal
}

// Ledger holds every (user, partition, asset) balance. All mutations go
// through Add/Sub/Freeze/Unfreeze so invariant B1 (never negative) holds
// everywhere.
type Ledger struct {
	mu       sync.RWMutex
	balances map[key]money.Decimal
	assets   *asset.Registry
}

// NewLedger builds an empty ledger backed by the given asset registry; the
// registry is consulted to round every mutation to the asset's storage
// precision before it is applied.
func NewLedger(assets *asset.Registry) *Ledger {
	return &Ledger{
		balances: make(map[key]money.Decimal),
		assets:   assets,
	}
}

func (l *Ledger) round(assetID string, d money.Decimal) (money.Decimal, error) {
	prec, err := l.assets.PrecStore(assetID)
	if err != nil {
		return money.Decimal{}, cerr.Wrap(cerr.InvalidArgument, "unknown asset", err)
	}
	return d.RoundDP(prec), nil
}

// Get returns the current balance for (user, partition, asset). Unknown
// entries are zero, not an error.
func (l *Ledger) Get(user uuid.UUID, partition types.Partition, assetID string) money.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[key{user, partition, assetID}]
}

// Add increments the balance by delta, which must be positive.
func (l *Ledger) Add(user uuid.UUID, partition types.Partition, assetID string, delta money.Decimal) error {
	if !l.assets.Exists(assetID) {
		return cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown asset %q", assetID))
	}
	rounded, err := l.round(assetID, delta)
	if err != nil {
		return err
	}
	if !rounded.IsSignPositive() {
		return cerr.New(cerr.InvalidArgument, "add delta must be > 0")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{user, partition, assetID}
	l.balances[k] = l.balances[k].Add(rounded)
	return nil
}

// Sub decrements the balance by delta. Fails with InsufficientBalance if
// the current balance is below delta.
func (l *Ledger) Sub(user uuid.UUID, partition types.Partition, assetID string, delta money.Decimal) error {
	if !l.assets.Exists(assetID) {
		return cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown asset %q", assetID))
	}
	rounded, err := l.round(assetID, delta)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{user, partition, assetID}
	cur := l.balances[k]
	if cur.LessThan(rounded) {
		return cerr.New(cerr.InsufficientBalance, fmt.Sprintf("user %s asset %s: have %s, need %s", user, assetID, cur, rounded))
	}
	l.balances[k] = cur.Sub(rounded)
	return nil
}

// Freeze atomically moves delta from AVAILABLE to FROZEN.
func (l *Ledger) Freeze(user uuid.UUID, assetID string, delta money.Decimal) error {
	if err := l.Sub(user, types.Available, assetID, delta); err != nil {
		return err
	}
	return l.Add(user, types.Frozen, assetID, delta)
}

// Unfreeze atomically moves delta from FROZEN back to AVAILABLE.
func (l *Ledger) Unfreeze(user uuid.UUID, assetID string, delta money.Decimal) error {
	if err := l.Sub(user, types.Frozen, assetID, delta); err != nil {
		return err
	}
	return l.Add(user, types.Available, assetID, delta)
}

// Reset discards every balance. Used by debug_reset/debug_reload.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[key]money.Decimal)
}

// BalanceEntry is one (user, partition, asset) balance, the unit a
// snapshot serializes.
type BalanceEntry struct {
	User      uuid.UUID
	Partition types.Partition
	Asset     string
	Amount    money.Decimal
}

// All returns every non-zero balance, for snapshot serialization.
func (l *Ledger) All() []BalanceEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]BalanceEntry, 0, len(l.balances))
	for k, v := range l.balances {
		if v.IsZero() {
			continue
		}
		out = append(out, BalanceEntry{User: k.user, Partition: k.partition, Asset: k.asset, Amount: v})
	}
	return out
}

// Restore sets a balance directly from a snapshot entry, bypassing the
// asset-existence and sign checks Add/Sub apply — the snapshot was
// produced by this same ledger, so its entries are already valid.
func (l *Ledger) Restore(e BalanceEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[key{e.User, e.Partition, e.Asset}] = e.Amount
}
