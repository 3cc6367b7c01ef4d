package balance

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"matchengine/internal/cerr"
	"matchengine/internal/money"
	"matchengine/pkg/types"
)

// UpdateParams is the input to UpdateController.Update (C5).
type UpdateParams struct {
	BusinessType types.BusinessType
	User         uuid.UUID
	Asset        string
	Business     string
	BusinessID   uint64
	Change       money.Decimal // signed
	Detail       []byte        // opaque, forwarded to the event sink unparsed
}

type idemKey struct {
	user       uuid.UUID
	asset      string
	business   string
	businessID uint64
}

// Sink is the subset of the event-sink capability set the balance
// controller needs. Defined here (rather than imported from internal/sink)
// to avoid a dependency from the domain layer onto the sink layer; the
// concrete sink.EventSink satisfies it.
type Sink interface {
	PutBalance(h History)
	PutDeposit(h History)
	PutWithdraw(h History)
}

// UpdateController is C5: deposit/withdraw/transfer semantics atop the
// ledger, with idempotency keyed by (user, asset, business, business_id).
type UpdateController struct {
	mu     sync.Mutex
	ledger *Ledger
	sink   Sink
	seen   map[idemKey]money.Decimal
}

// NewUpdateController wires a ledger and the event sink it reports to.
func NewUpdateController(ledger *Ledger, sink Sink) *UpdateController {
	return &UpdateController{
		ledger: ledger,
		sink:   sink,
		seen:   make(map[idemKey]money.Decimal),
	}
}

// WithSink temporarily swaps the controller's event sink for the duration
// of fn, restoring the original sink afterward. Replay uses this to run
// Update against a discard sink, so re-applying a historical deposit,
// withdraw, or transfer leg reproduces ledger state without re-emitting the
// balance event it already emitted live.
func (c *UpdateController) WithSink(temp Sink, fn func()) {
	c.mu.Lock()
	orig := c.sink
	c.sink = temp
	c.mu.Unlock()

	fn()

	c.mu.Lock()
	c.sink = orig
	c.mu.Unlock()
}

// Reset discards the idempotency cache. Used by debug_reset/debug_reload,
// always alongside a Ledger.Reset — otherwise a stale cache entry would
// silently no-op a legitimate post-reset replay of the same business_id.
func (c *UpdateController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[idemKey]money.Decimal)
}

// Update applies a signed balance change, replaying an already-seen
// (user, asset, business, business_id) idempotently. A second call with
// the same key but a different Change fails with RepeatUpdate.
func (c *UpdateController) Update(p UpdateParams) (money.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := idemKey{p.User, p.Asset, p.Business, p.BusinessID}
	if prev, ok := c.seen[k]; ok {
		if !prev.Equal(p.Change) {
			return money.Decimal{}, cerr.New(cerr.RepeatUpdate,
				fmt.Sprintf("business_id %d for %s/%s already applied with a different change", p.BusinessID, p.User, p.Asset))
		}
		return c.ledger.Get(p.User, types.Available, p.Asset), nil
	}

	if p.Change.IsSignPositive() {
		if err := c.ledger.Add(p.User, types.Available, p.Asset, p.Change); err != nil {
			return money.Decimal{}, err
		}
	} else if p.Change.IsSignNegative() {
		if err := c.ledger.Sub(p.User, types.Available, p.Asset, p.Change.Neg()); err != nil {
			return money.Decimal{}, err
		}
	}
	// a zero change is a legal no-op update, recorded for idempotency but
	// never touching the ledger.

	c.seen[k] = p.Change
	newBalance := c.ledger.Get(p.User, types.Available, p.Asset)

	hist := History{
		UserID:     p.User,
		Asset:      p.Asset,
		Business:   p.Business,
		BusinessID: p.BusinessID,
		Change:     p.Change,
		Balance:    newBalance,
	}
	switch p.BusinessType {
	case types.BusinessDeposit:
		c.sink.PutDeposit(hist)
	case types.BusinessWithdraw:
		c.sink.PutWithdraw(hist)
	default:
		c.sink.PutBalance(hist)
	}

	return newBalance, nil
}
