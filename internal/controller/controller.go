// Package controller implements the single-writer façade (C8) every
// mutating operation runs through: service-available gating, argument
// validation, applying the change via the balance and market layers, and —
// outside replay — appending exactly one operation-log entry as the
// commit point.
package controller

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"matchengine/internal/asset"
	"matchengine/internal/balance"
	"matchengine/internal/cerr"
	"matchengine/internal/market"
	"matchengine/internal/money"
	"matchengine/internal/oplog"
	"matchengine/internal/sequencer"
	"matchengine/internal/sink"
	"matchengine/pkg/types"
)

const maxBatchOrders = 40

// discardSink implements market.Sink, balance.Sink, and sink.EventSink with
// every method a no-op. Replay (real=false) swaps it in wherever a mutating
// operation would otherwise report to the live event sink, mirroring how
// the student's grounding source swaps in its own dummy persistor before
// re-applying a logged operation — without this, re-running a historical
// order_put/balance_update/transfer against the same composite sink used
// for live traffic would re-deliver every order, trade, and balance event
// on every process restart.
type discardSink struct{}

func (discardSink) ServiceAvailable() bool                       { return true }
func (discardSink) PutBalance(balance.History)                   {}
func (discardSink) PutDeposit(balance.History)                   {}
func (discardSink) PutWithdraw(balance.History)                  {}
func (discardSink) PutOrder(*market.Order, types.OrderEventType) {}
func (discardSink) PutTrade(*market.Trade)                       {}
func (discardSink) PutTransfer(types.InternalTx)                 {}

// withEngineReplayGate runs fn with the market engine's event sink swapped
// to discardSink when real is false.
func (c *Controller) withEngineReplayGate(real bool, fn func()) {
	if real {
		fn()
		return
	}
	c.engine.WithSink(discardSink{}, fn)
}

// withUpdatesReplayGate is withEngineReplayGate's balance-layer
// counterpart, covering balance_update and transfer.
func (c *Controller) withUpdatesReplayGate(real bool, fn func()) {
	if real {
		fn()
		return
	}
	c.updates.WithSink(discardSink{}, fn)
}

// Controller is C8. All exported mutating methods must be called with
// exclusive access (the owning goroutine is the single writer); read
// methods may run concurrently with each other but never alongside a
// mutating call — see §5.
type Controller struct {
	mu sync.RWMutex

	assets  *asset.Registry
	ledger  *balance.Ledger
	updates *balance.UpdateController
	engine  *market.Engine
	seq     *sequencer.Sequencer
	appender oplog.Appender
	sink    sink.EventSink

	userOrderNumLimit int
}

// Config bundles the already-constructed lower layers; Controller does not
// own their lifecycle.
type Config struct {
	Assets            *asset.Registry
	Ledger            *balance.Ledger
	Updates           *balance.UpdateController
	Engine            *market.Engine
	Sequencer         *sequencer.Sequencer
	Appender          oplog.Appender
	Sink              sink.EventSink
	UserOrderNumLimit int
}

// New wires a Controller from its already-constructed dependencies.
func New(cfg Config) *Controller {
	return &Controller{
		assets:            cfg.Assets,
		ledger:            cfg.Ledger,
		updates:           cfg.Updates,
		engine:            cfg.Engine,
		seq:               cfg.Sequencer,
		appender:          cfg.Appender,
		sink:              cfg.Sink,
		userOrderNumLimit: cfg.UserOrderNumLimit,
	}
}

// checkServiceAvailable is §4.8 step 1: a mutating op may not even begin if
// the event sink is backpressured or the op-log's own backlog is full.
func (c *Controller) checkServiceAvailable() error {
	if !c.sink.ServiceAvailable() {
		return cerr.New(cerr.ServiceUnavailable, "event sink unavailable")
	}
	if c.appender.Full() {
		return cerr.New(cerr.ServiceUnavailable, "operation log backlog full")
	}
	return nil
}

// appendLog is the commit point (§4.9c): called only when real is true, so
// replay never re-appends or re-emits events for an operation it is
// merely re-applying to rebuild state.
func (c *Controller) appendLog(real bool, userID uuid.UUID, now float64, method types.Method, params interface{}) error {
	if !real {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return cerr.Wrap(cerr.Internal, "marshal op-log params", err)
	}
	entry := types.OperationLogEntry{
		ID:     c.seq.NextOperationLogID(),
		UserID: userID,
		Time:   now,
		Method: method,
		Params: raw,
	}
	if err := c.appender.Append(entry); err != nil {
		return cerr.Wrap(cerr.Internal, "append operation log", err)
	}
	return nil
}

// BalanceUpdate is the balance_update mutating RPC.
func (c *Controller) BalanceUpdate(req types.BalanceUpdateRequest, now float64, real bool) (money.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if real {
		if err := c.checkServiceAvailable(); err != nil {
			return money.Decimal{}, err
		}
	}
	if !c.assets.Exists(req.Asset) {
		return money.Decimal{}, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown asset %q", req.Asset))
	}
	change, err := money.NewFromString(req.Change)
	if err != nil {
		return money.Decimal{}, cerr.Wrap(cerr.InvalidArgument, "parse change", err)
	}

	var balanceAfter money.Decimal
	var updateErr error
	c.withUpdatesReplayGate(real, func() {
		balanceAfter, updateErr = c.updates.Update(balance.UpdateParams{
			BusinessType: req.BusinessType,
			User:         req.UserID,
			Asset:        req.Asset,
			Business:     req.Business,
			BusinessID:   req.BusinessID,
			Change:       change,
			Detail:       req.Detail,
		})
	})
	if updateErr != nil {
		return money.Decimal{}, updateErr
	}

	if err := c.appendLog(real, req.UserID, now, types.MethodBalanceUpdate, req); err != nil {
		return money.Decimal{}, err
	}
	return balanceAfter, nil
}

// validateOrderCap enforces user_order_num_limit (§4.8 step 2).
func (c *Controller) validateOrderCap(user uuid.UUID) error {
	if c.userOrderNumLimit <= 0 {
		return nil
	}
	if c.engine.CountOpenOrders(user) >= c.userOrderNumLimit {
		return cerr.New(cerr.TooManyActiveOrders, "user_order_num_limit reached")
	}
	return nil
}

func decodeOrderInput(req types.OrderPutRequest) (market.Input, error) {
	amount, err := money.NewFromString(req.Amount)
	if err != nil {
		return market.Input{}, cerr.Wrap(cerr.InvalidArgument, "parse amount", err)
	}
	price, err := money.NewFromString(req.Price)
	if err != nil {
		return market.Input{}, cerr.Wrap(cerr.InvalidArgument, "parse price", err)
	}
	quoteLimit := money.Zero
	if req.QuoteLimit != "" {
		quoteLimit, err = money.NewFromString(req.QuoteLimit)
		if err != nil {
			return market.Input{}, cerr.Wrap(cerr.InvalidArgument, "parse quote_limit", err)
		}
	}
	takerFee, err := money.NewFromString(req.TakerFee)
	if err != nil {
		return market.Input{}, cerr.Wrap(cerr.InvalidArgument, "parse taker_fee", err)
	}
	makerFee, err := money.NewFromString(req.MakerFee)
	if err != nil {
		return market.Input{}, cerr.Wrap(cerr.InvalidArgument, "parse maker_fee", err)
	}
	return market.Input{
		Side: req.Side, Type: req.Type, Amount: amount, Price: price,
		QuoteLimit: quoteLimit, TakerFee: takerFee, MakerFee: makerFee, PostOnly: req.PostOnly,
	}, nil
}

// OrderPut is the order_put mutating RPC.
func (c *Controller) OrderPut(req types.OrderPutRequest, now float64, real bool) (*market.Order, []*market.Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderPutLocked(req, now, real)
}

func (c *Controller) orderPutLocked(req types.OrderPutRequest, now float64, real bool) (*market.Order, []*market.Trade, error) {
	if real {
		if err := c.checkServiceAvailable(); err != nil {
			return nil, nil, err
		}
	}
	if !c.engine.MarketExists(req.Market) {
		return nil, nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", req.Market))
	}
	if err := c.validateOrderCap(req.UserID); err != nil {
		return nil, nil, err
	}
	in, err := decodeOrderInput(req)
	if err != nil {
		return nil, nil, err
	}

	var order *market.Order
	var trades []*market.Trade
	var placeErr error
	c.withEngineReplayGate(real, func() {
		order, trades, placeErr = c.engine.PlaceOrder(req.Market, req.UserID, in, now)
	})
	if placeErr != nil {
		return nil, nil, placeErr
	}

	if err := c.appendLog(real, req.UserID, now, types.MethodOrderPut, req); err != nil {
		return nil, nil, err
	}
	return order, trades, nil
}

// BatchOrderPut is the batch_order_put mutating RPC: 1..40 orders against a
// single market, optionally preceded by cancelling the user's existing
// orders in that market. All requested orders must share Market, and the
// whole batch fails without partial effect if any of them do.
func (c *Controller) BatchOrderPut(req types.BatchOrderPutRequest, now float64, real bool) (types.BatchOrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if real {
		if err := c.checkServiceAvailable(); err != nil {
			return types.BatchOrderResult{}, err
		}
	}
	if len(req.Orders) == 0 || len(req.Orders) > maxBatchOrders {
		return types.BatchOrderResult{}, cerr.New(cerr.InvalidArgument, fmt.Sprintf("batch size must be 1..%d", maxBatchOrders))
	}
	for _, o := range req.Orders {
		if o.Market != req.Market {
			return types.BatchOrderResult{}, cerr.New(cerr.InvalidArgument, "all orders in a batch must reference the same market")
		}
	}
	if !c.engine.MarketExists(req.Market) {
		return types.BatchOrderResult{}, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", req.Market))
	}

	if req.Reset {
		var cancelErr error
		c.withEngineReplayGate(real, func() {
			_, cancelErr = c.engine.CancelAllForUser(req.Market, req.UserID)
		})
		if cancelErr != nil {
			return types.BatchOrderResult{}, cancelErr
		}
	}

	ids := make([]uint64, 0, len(req.Orders))
	for _, o := range req.Orders {
		if err := c.validateOrderCap(req.UserID); err != nil {
			return types.BatchOrderResult{}, err
		}
		in, err := decodeOrderInput(o)
		if err != nil {
			return types.BatchOrderResult{}, err
		}
		var order *market.Order
		var placeErr error
		c.withEngineReplayGate(real, func() {
			order, _, placeErr = c.engine.PlaceOrder(req.Market, req.UserID, in, now)
		})
		if placeErr != nil {
			return types.BatchOrderResult{}, placeErr
		}
		ids = append(ids, order.ID)
	}

	if err := c.appendLog(real, req.UserID, now, types.MethodBatchOrderPut, req); err != nil {
		return types.BatchOrderResult{}, err
	}
	return types.BatchOrderResult{OrderIDs: ids}, nil
}

// OrderCancel is the order_cancel mutating RPC.
func (c *Controller) OrderCancel(req types.OrderCancelRequest, now float64, real bool) (*market.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if real {
		if err := c.checkServiceAvailable(); err != nil {
			return nil, err
		}
	}
	if !c.engine.MarketExists(req.Market) {
		return nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", req.Market))
	}
	var order *market.Order
	var cancelErr error
	c.withEngineReplayGate(real, func() {
		order, cancelErr = c.engine.Cancel(req.Market, req.UserID, req.OrderID)
	})
	if cancelErr != nil {
		return nil, cancelErr
	}
	if err := c.appendLog(real, req.UserID, now, types.MethodOrderCancel, req); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderCancelAll is the order_cancel_all mutating RPC.
func (c *Controller) OrderCancelAll(req types.OrderCancelAllRequest, now float64, real bool) ([]*market.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if real {
		if err := c.checkServiceAvailable(); err != nil {
			return nil, err
		}
	}
	if !c.engine.MarketExists(req.Market) {
		return nil, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown market %q", req.Market))
	}
	var orders []*market.Order
	var cancelErr error
	c.withEngineReplayGate(real, func() {
		orders, cancelErr = c.engine.CancelAllForUser(req.Market, req.UserID)
	})
	if cancelErr != nil {
		return nil, cancelErr
	}
	if err := c.appendLog(real, req.UserID, now, types.MethodOrderCancelAll, req); err != nil {
		return nil, err
	}
	return orders, nil
}

// Transfer is the transfer mutating RPC. A non-positive amount or an
// amount exceeding the sender's available balance is reported as
// {success:false}, not an error (§4.8) — state is left untouched either
// way in that case.
func (c *Controller) Transfer(req types.TransferRequest, now float64, real bool) (types.TransferResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if real {
		if err := c.checkServiceAvailable(); err != nil {
			return types.TransferResult{}, err
		}
	}
	if !c.assets.Exists(req.Asset) {
		return types.TransferResult{}, cerr.New(cerr.InvalidArgument, fmt.Sprintf("unknown asset %q", req.Asset))
	}
	amount, err := money.NewFromString(req.Amount)
	if err != nil {
		return types.TransferResult{}, cerr.Wrap(cerr.InvalidArgument, "parse amount", err)
	}

	available := c.ledger.Get(req.From, types.Available, req.Asset)
	if !amount.IsSignPositive() || amount.GreaterThan(available) {
		return types.TransferResult{Success: false, BalanceFrom: available.String()}, nil
	}

	// business_id is generated once, from this operation's own timestamp,
	// and logged on req so replay reuses the exact same idempotency key.
	if real {
		req.BusinessID = uint64(now * 1000)
	}

	var updateErr error
	c.withUpdatesReplayGate(real, func() {
		_, updateErr = c.updates.Update(balance.UpdateParams{
			BusinessType: types.BusinessTransfer,
			User:         req.From,
			Asset:        req.Asset,
			Business:     "transfer",
			BusinessID:   req.BusinessID,
			Change:       amount.Neg(),
		})
	})
	if updateErr != nil {
		return types.TransferResult{}, updateErr
	}
	c.withUpdatesReplayGate(real, func() {
		_, updateErr = c.updates.Update(balance.UpdateParams{
			BusinessType: types.BusinessTransfer,
			User:         req.To,
			Asset:        req.Asset,
			Business:     "transfer",
			BusinessID:   req.BusinessID,
			Change:       amount,
		})
	})
	if updateErr != nil {
		return types.TransferResult{}, updateErr
	}

	if real {
		c.sink.PutTransfer(types.InternalTx{
			Timestamp: now, UserFrom: req.From, UserTo: req.To, Asset: req.Asset, Amount: amount.String(),
		})
	}

	if err := c.appendLog(real, req.From, now, types.MethodTransfer, req); err != nil {
		return types.TransferResult{}, err
	}
	return types.TransferResult{Success: true, BalanceFrom: c.ledger.Get(req.From, types.Available, req.Asset).String()}, nil
}
