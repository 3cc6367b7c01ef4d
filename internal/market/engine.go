package market

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"matchengine/internal/balance"
	"matchengine/internal/cerr"
	"matchengine/internal/money"
	"matchengine/internal/sequencer"
	"matchengine/pkg/types"
)

// Engine is C7: it owns every market's book and crosses incoming orders
// against them. It is not safe for concurrent mutating calls — the
// single-writer model (§5) serializes access above this layer, in
// internal/controller.
type Engine struct {
	mu      sync.RWMutex
	books   map[string]*book
	configs map[string]Config

	ledger *balance.Ledger
	seq    *sequencer.Sequencer
	sink   Sink

	DisableSelfTrade   bool
	DisableMarketOrder bool
}

// New builds an Engine with no markets registered yet.
func New(ledger *balance.Ledger, seq *sequencer.Sequencer, sink Sink) *Engine {
	return &Engine{
		books:   make(map[string]*book),
		configs: make(map[string]Config),
		ledger:  ledger,
		seq:     seq,
		sink:    sink,
	}
}

// WithSink temporarily swaps the engine's event sink for the duration of
// fn, restoring the original sink afterward. Replay uses this to run
// PlaceOrder/Cancel/CancelAllForUser against a discard sink, so re-applying
// a historical operation reproduces book and ledger state without
// re-emitting the order/trade events it already emitted live.
func (e *Engine) WithSink(temp Sink, fn func()) {
	e.mu.Lock()
	orig := e.sink
	e.sink = temp
	e.mu.Unlock()

	fn()

	e.mu.Lock()
	e.sink = orig
	e.mu.Unlock()
}

// AddMarket registers a new market. Markets are immutable once added;
// re-adding an existing name is rejected (use AppendMarkets for additive
// reload semantics that tolerate an identical redefinition).
func (e *Engine) AddMarket(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.configs[cfg.Name]; exists {
		return cerr.New(cerr.InvalidArgument, fmt.Sprintf("market %q already registered", cfg.Name))
	}
	e.configs[cfg.Name] = cfg
	e.books[cfg.Name] = newBook(cfg)
	return nil
}

// AppendMarkets additively reloads markets: unseen names are registered,
// existing names must match exactly or the whole call fails untouched.
func (e *Engine) AppendMarkets(cfgs []Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cfg := range cfgs {
		if existing, ok := e.configs[cfg.Name]; ok && existing != cfg {
			return cerr.New(cerr.InvalidArgument, fmt.Sprintf("market %q reload mismatch", cfg.Name))
		}
	}
	for _, cfg := range cfgs {
		if _, ok := e.configs[cfg.Name]; !ok {
			e.configs[cfg.Name] = cfg
			e.books[cfg.Name] = newBook(cfg)
		}
	}
	return nil
}

// MarketExists reports whether market is a registered market.
func (e *Engine) MarketExists(market string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.configs[market]
	return ok
}

// Config returns a market's configuration.
func (e *Engine) Config(market string) (Config, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.configs[market]
	return cfg, ok
}

// AllConfigs returns every registered market's configuration, order
// unspecified.
func (e *Engine) AllConfigs() []Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Config, 0, len(e.configs))
	for _, cfg := range e.configs {
		out = append(out, cfg)
	}
	return out
}

// Status returns a market's current book status.
func (e *Engine) Status(market string) (Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.books[market]
	if !ok {
		return Status{}, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	return b.status(), nil
}

// Depth returns aggregated order book depth for a market.
func (e *Engine) Depth(market string, limit int, interval money.Decimal) (asks, bids []DepthLevel, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.books[market]
	if !ok {
		return nil, nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	asks, bids = b.Depth(limit, interval)
	return asks, bids, nil
}

// OrderByID returns a single resting order, or NotFound.
func (e *Engine) OrderByID(market string, id uint64) (*Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.books[market]
	if !ok {
		return nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	o, ok := b.byID[id]
	if !ok {
		return nil, cerr.New(cerr.NotFound, fmt.Sprintf("order %d not found", id))
	}
	return o, nil
}

// OrdersForUser returns a user's resting orders in market.
func (e *Engine) OrdersForUser(market string, user uuid.UUID) ([]*Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.books[market]
	if !ok {
		return nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	return b.ordersForUser(user), nil
}

// CountOpenOrders returns how many resting orders user has across every
// market — used by the controller to enforce user_order_num_limit.
func (e *Engine) CountOpenOrders(user uuid.UUID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := 0
	for _, b := range e.books {
		total += len(b.byUser[user])
	}
	return total
}

// Reset discards every market, book, and resting order. Used by
// debug_reset/debug_reload. It does not touch the ledger — the caller is
// responsible for resetting balances separately.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.books = make(map[string]*book)
	e.configs = make(map[string]Config)
}

// DumpOpenOrders returns every resting order across every market, for
// inclusion in a snapshot (§4.11). Order is unspecified; the snapshot
// writer doesn't depend on it.
func (e *Engine) DumpOpenOrders() []*Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Order
	for _, b := range e.books {
		out = append(out, b.asks...)
		out = append(out, b.bids...)
	}
	return out
}

// RestoreOrder re-inserts a previously snapshotted resting order directly
// into its market's book, bypassing validation and freezing — the
// snapshot's balance entries already account for every order's frozen
// amount, so re-freezing here would double-count it.
func (e *Engine) RestoreOrder(o *Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[o.Market]
	if !ok {
		return cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", o.Market))
	}
	b.insert(o)
	return nil
}

// frozenAsset returns the asset an order, if resting as a LIMIT, holds
// frozen: base for ASK, quote for BID.
func frozenAsset(cfg Config, side types.Side) string {
	if side == types.Ask {
		return cfg.Base
	}
	return cfg.Quote
}

// PlaceOrder validates and executes a new order (§4.7). now is the
// operation's timestamp in fractional seconds — supplied by the caller
// (wall clock for a real op, the recorded op-log time on replay) so the
// matching algorithm itself never reads the clock.
func (e *Engine) PlaceOrder(market string, user uuid.UUID, in Input, now float64) (*Order, []*Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.configs[market]
	if !ok {
		return nil, nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	b := e.books[market]

	if err := validateInput(cfg, in, e.DisableMarketOrder); err != nil {
		return nil, nil, err
	}

	amount := in.Amount.RoundDP(cfg.AmountPrec)
	price := in.Price
	if in.Type == types.Limit {
		price = price.RoundDP(cfg.PricePrec)
	}

	order := &Order{
		ID:         e.seq.NextOrderID(),
		Market:     market,
		Base:       cfg.Base,
		Quote:      cfg.Quote,
		Side:       in.Side,
		Type:       in.Type,
		UserID:     user,
		PostOnly:   in.PostOnly,
		Price:      price,
		Amount:     amount,
		TakerFee:   in.TakerFee,
		MakerFee:   in.MakerFee,
		CreateTime: now,
		UpdateTime: now,
		Remain:     amount,
		FinishedBase:  money.Zero,
		FinishedQuote: money.Zero,
		FinishedFee:   money.Zero,
		QuoteLimit: in.QuoteLimit,
	}

	// pre-freeze: only a resting-capable LIMIT order freezes up front.
	if in.Type == types.Limit {
		frozenAmt := amount
		asset := cfg.Base
		if in.Side == types.Bid {
			frozenAmt = amount.Mul(price)
			asset = cfg.Quote
		}
		if err := e.ledger.Freeze(user, asset, frozenAmt); err != nil {
			return nil, nil, err
		}
		order.Frozen = frozenAmt
	} else {
		order.Frozen = money.Zero
	}

	e.sink.PutOrder(order, types.OrderPut)

	trades, cancelled, err := e.cross(b, cfg, order, now)
	if err != nil {
		return nil, nil, err
	}
	if cancelled {
		return order, trades, nil
	}

	if order.Type == types.Limit && order.Remain.IsSignPositive() {
		b.insert(order)
	} else {
		// LIMIT fully filled (cross has already released whatever was left
		// of its pre-freeze), or MARKET (which never rests regardless of
		// whether it could be fully filled — nothing was pre-frozen for it
		// to refund).
		e.sink.PutOrder(order, types.OrderFinish)
	}

	return order, trades, nil
}

func validateInput(cfg Config, in Input, disableMarketOrder bool) error {
	if in.Type == types.Market && disableMarketOrder {
		return cerr.New(cerr.InvalidArgument, "market orders are disabled")
	}
	if in.Type == types.Market && in.PostOnly {
		return cerr.New(cerr.InvalidArgument, "post_only is incompatible with MARKET")
	}
	if in.Type == types.Limit && !in.Price.IsSignPositive() {
		return cerr.New(cerr.InvalidArgument, "LIMIT requires price > 0")
	}
	if in.Type == types.Market && !in.Price.IsZero() {
		return cerr.New(cerr.InvalidArgument, "MARKET requires price == 0")
	}
	roundedAmount := in.Amount.RoundDP(cfg.AmountPrec)
	if roundedAmount.LessThan(cfg.MinAmount) {
		return cerr.New(cerr.InvalidArgument, "amount below market minimum")
	}
	if in.TakerFee.IsSignNegative() || !in.TakerFee.LessThan(money.NewFromInt(1)) {
		return cerr.New(cerr.InvalidArgument, "taker_fee must be in [0,1)")
	}
	if in.MakerFee.IsSignNegative() || !in.MakerFee.LessThan(money.NewFromInt(1)) {
		return cerr.New(cerr.InvalidArgument, "maker_fee must be in [0,1)")
	}
	return nil
}

// Cancel removes a resting order, unfreezes its residual, and emits FINISH.
func (e *Engine) Cancel(market string, user uuid.UUID, orderID uint64) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[market]
	if !ok {
		return nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	o, ok := b.byID[orderID]
	if !ok || o.UserID != user {
		return nil, cerr.New(cerr.NotFound, fmt.Sprintf("order %d not found for user", orderID))
	}
	return o, e.cancelOrder(b, o)
}

// CancelAllForUser cancels every order user holds in market.
func (e *Engine) CancelAllForUser(market string, user uuid.UUID) ([]*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[market]
	if !ok {
		return nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", market))
	}
	orders := b.ordersForUser(user)
	for _, o := range orders {
		if err := e.cancelOrder(b, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (e *Engine) cancelOrder(b *book, o *Order) error {
	asset := frozenAsset(e.configs[o.Market], o.Side)
	if o.Frozen.IsSignPositive() {
		if err := e.ledger.Unfreeze(o.UserID, asset, o.Frozen); err != nil {
			return err
		}
	}
	o.Frozen = money.Zero
	b.remove(o)
	e.sink.PutOrder(o, types.OrderFinish)
	return nil
}
