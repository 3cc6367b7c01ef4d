package market

import (
	"testing"

	"github.com/google/uuid"

	"matchengine/internal/asset"
	"matchengine/internal/balance"
	"matchengine/internal/money"
	"matchengine/internal/sequencer"
	"matchengine/pkg/types"
)

type nullSink struct {
	orders []orderEvent
	trades []*Trade
}

type orderEvent struct {
	order *Order
	event types.OrderEventType
}

func (s *nullSink) PutOrder(o *Order, event types.OrderEventType) {
	s.orders = append(s.orders, orderEvent{o, event})
}
func (s *nullSink) PutTrade(t *Trade) { s.trades = append(s.trades, t) }

func newTestEngine(t *testing.T) (*Engine, *nullSink, uuid.UUID, uuid.UUID) {
	t.Helper()
	reg := asset.NewRegistry()
	must(t, reg.Register(asset.Asset{ID: "ETH", PrecStore: 8, PrecShow: 6}))
	must(t, reg.Register(asset.Asset{ID: "USDT", PrecStore: 8, PrecShow: 2}))

	ledger := balance.NewLedger(reg)
	u1, u2 := uuid.New(), uuid.New()
	must(t, ledger.Add(u1, types.Available, "ETH", money.MustFromString("10")))
	must(t, ledger.Add(u2, types.Available, "USDT", money.MustFromString("100000")))

	seq := sequencer.New(0, 0, 0)
	sink := &nullSink{}
	e := New(ledger, seq, sink)
	must(t, e.AddMarket(Config{
		Name: "ETH_USDT", Base: "ETH", Quote: "USDT",
		AmountPrec: 8, PricePrec: 2, FeePrec: 8,
		MinAmount: money.MustFromString("0.0001"),
	}))
	return e, sink, u1, u2
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
}

// TestSimpleFullCross exercises §8 scenario 1: a resting ASK maker is fully
// filled by a crossing BID taker, fees charged at each side's own rate.
func TestSimpleFullCross(t *testing.T) {
	t.Parallel()
	e, _, u1, u2 := newTestEngine(t)

	_, _, err := e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Ask, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
		TakerFee: money.MustFromString("0.002"), MakerFee: money.MustFromString("0.001"),
	}, 1000)
	if err != nil {
		t.Fatalf("maker PlaceOrder: %v", err)
	}

	_, trades, err := e.PlaceOrder("ETH_USDT", u2, Input{
		Side: types.Bid, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
		TakerFee: money.MustFromString("0.002"), MakerFee: money.MustFromString("0.001"),
	}, 1001)
	if err != nil {
		t.Fatalf("taker PlaceOrder: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}

	// U1 (ask, maker, seller) receives 500 USDT minus its 0.001 maker fee.
	if got := e.ledger.Get(u1, types.Available, "USDT").String(); got != "499.5" {
		t.Errorf("u1 USDT = %s, want 499.5", got)
	}
	// U2 (bid, taker, buyer) receives 1 ETH minus its 0.002 taker fee.
	if got := e.ledger.Get(u2, types.Available, "ETH").String(); got != "0.998" {
		t.Errorf("u2 ETH = %s, want 0.998", got)
	}
}

// TestPartialFillLeavesResting checks a maker larger than the taker keeps
// resting with the correct remain after a partial fill.
func TestPartialFillLeavesResting(t *testing.T) {
	t.Parallel()
	e, _, u1, u2 := newTestEngine(t)

	order, _, err := e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Ask, Type: types.Limit,
		Amount: money.MustFromString("2"), Price: money.MustFromString("500"),
	}, 1000)
	if err != nil {
		t.Fatalf("maker PlaceOrder: %v", err)
	}

	_, trades, err := e.PlaceOrder("ETH_USDT", u2, Input{
		Side: types.Bid, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
	}, 1001)
	if err != nil {
		t.Fatalf("taker PlaceOrder: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if order.Remain.String() != "1" {
		t.Errorf("maker remain = %s, want 1", order.Remain)
	}
	got, err := e.OrderByID("ETH_USDT", order.ID)
	if err != nil {
		t.Fatalf("OrderByID: %v", err)
	}
	if got.Remain.String() != "1" {
		t.Errorf("resting order remain = %s, want 1", got.Remain)
	}
}

// TestSelfTradeCancelsMaker resolves the self-trade Open Question: the
// resting maker is cancelled (unfrozen, removed) rather than the trade
// being skipped or the taker rejected.
func TestSelfTradeCancelsMaker(t *testing.T) {
	t.Parallel()
	e, _, u1, _ := newTestEngine(t)
	e.DisableSelfTrade = true

	maker, _, err := e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Ask, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
	}, 1000)
	if err != nil {
		t.Fatalf("maker PlaceOrder: %v", err)
	}

	// fund u1 with USDT so it can also place the crossing bid
	must(t, e.ledger.Add(u1, types.Available, "USDT", money.MustFromString("1000")))

	taker, trades, err := e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Bid, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
	}, 1001)
	if err != nil {
		t.Fatalf("taker PlaceOrder: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("trades = %d, want 0 (self-trade must not fill)", len(trades))
	}
	if _, err := e.OrderByID("ETH_USDT", maker.ID); err == nil {
		t.Error("maker should have been cancelled and removed from the book")
	}
	if got := e.ledger.Get(u1, types.Available, "ETH").String(); got != "10" {
		t.Errorf("u1 ETH after maker unfreeze = %s, want 10 (fully refunded)", got)
	}
	// taker rests afterward since nothing consumed it.
	if taker.Remain.String() != "1" {
		t.Errorf("taker remain = %s, want 1", taker.Remain)
	}
}

// TestPostOnlyRejectsCrossingTaker checks the taker itself is refunded and
// finished, without producing a trade, when post_only would cross.
func TestPostOnlyRejectsCrossingTaker(t *testing.T) {
	t.Parallel()
	e, _, u1, u2 := newTestEngine(t)

	_, _, err := e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Ask, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
	}, 1000)
	if err != nil {
		t.Fatalf("maker PlaceOrder: %v", err)
	}

	taker, trades, err := e.PlaceOrder("ETH_USDT", u2, Input{
		Side: types.Bid, Type: types.Limit,
		Amount: money.MustFromString("1"), Price: money.MustFromString("500"),
		PostOnly: true,
	}, 1001)
	if err != nil {
		t.Fatalf("taker PlaceOrder: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("trades = %d, want 0", len(trades))
	}
	if taker.Remain.String() != "1" {
		t.Errorf("rejected post_only taker remain = %s, want 1 (amount unchanged)", taker.Remain)
	}
	if got := e.ledger.Get(u2, types.Available, "USDT").String(); got != "100000" {
		t.Errorf("u2 USDT after post_only reject = %s, want 100000 (fully refunded)", got)
	}
	if _, err := e.OrderByID("ETH_USDT", taker.ID); err == nil {
		t.Error("rejected post_only taker should not rest in the book")
	}
}

// TestMarketBidQuoteLimitStopsEarly reproduces §8 scenario 5: a MARKET BID
// with a binding quote_limit walks the book until spending the limit would
// require flooring the next slice's base amount to zero, then halts with
// remain still positive.
func TestMarketBidQuoteLimitStopsEarly(t *testing.T) {
	t.Parallel()
	e, _, u1, u2 := newTestEngine(t)

	must(t, e.ledger.Add(u1, types.Available, "ETH", money.MustFromString("10")))
	_, _, err := e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Ask, Type: types.Limit,
		Amount: money.MustFromString("0.5"), Price: money.MustFromString("100"),
	}, 1000)
	if err != nil {
		t.Fatalf("maker1 PlaceOrder: %v", err)
	}
	_, _, err = e.PlaceOrder("ETH_USDT", u1, Input{
		Side: types.Ask, Type: types.Limit,
		Amount: money.MustFromString("1.0"), Price: money.MustFromString("110"),
	}, 1001)
	if err != nil {
		t.Fatalf("maker2 PlaceOrder: %v", err)
	}

	taker, trades, err := e.PlaceOrder("ETH_USDT", u2, Input{
		Side: types.Bid, Type: types.Market,
		Amount:     money.MustFromString("5.0"),
		QuoteLimit: money.MustFromString("130"),
	}, 1002)
	if err != nil {
		t.Fatalf("taker PlaceOrder: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if taker.FinishedBase.String() != "1.22727272" {
		t.Errorf("taker finished_base = %s, want 1.22727272", taker.FinishedBase)
	}
	if !taker.Remain.IsSignPositive() {
		t.Error("taker should halt with remain > 0 once quote_limit is exhausted")
	}
}
