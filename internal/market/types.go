// Package market implements the per-market order book (C6) and the
// matching engine that crosses it (C7).
package market

import (
	"github.com/google/uuid"

	"matchengine/internal/money"
	"matchengine/pkg/types"
)

// Config is a market's immutable configuration: the trading pair, its
// precisions, and its minimum order size.
type Config struct {
	Name       string
	Base       string // asset id
	Quote      string // asset id
	AmountPrec int32
	PricePrec  int32
	FeePrec    int32
	MinAmount  money.Decimal
}

// Order is a resting or just-matched order. remain + finished_base always
// equals amount for a LIMIT order (invariant O1); frozen tracks exactly
// what this order still holds in the FROZEN partition (invariant O2).
type Order struct {
	ID       uint64
	Market   string
	Base     string // interned asset id, copied at creation time
	Quote    string // interned asset id, copied at creation time
	Side     types.Side
	Type     types.OrderType
	UserID   uuid.UUID
	PostOnly bool

	Price  money.Decimal // zero for MARKET
	Amount money.Decimal

	TakerFee money.Decimal
	MakerFee money.Decimal

	CreateTime float64
	UpdateTime float64

	Remain        money.Decimal
	Frozen        money.Decimal
	FinishedBase  money.Decimal
	FinishedQuote money.Decimal
	FinishedFee   money.Decimal

	QuoteLimit money.Decimal // MARKET BID only; zero = unlimited
}

// Trade is an immutable fill record.
type Trade struct {
	ID             uint64
	Market         string
	Price          money.Decimal
	Amount         money.Decimal
	QuoteAmount    money.Decimal
	Timestamp      float64
	AskOrderID     uint64
	BidOrderID     uint64
	AskUser        uuid.UUID
	BidUser        uuid.UUID
	TakerSide      types.Side
	TakerFeeAmount money.Decimal
	MakerFeeAmount money.Decimal
}

// Input is the caller-supplied request to place a new order (§4.7).
type Input struct {
	Side       types.Side
	Type       types.OrderType
	Amount     money.Decimal
	Price      money.Decimal // must be zero for MARKET
	QuoteLimit money.Decimal // MARKET BID only
	TakerFee   money.Decimal
	MakerFee   money.Decimal
	PostOnly   bool
}

// Sink is the subset of the event-sink capability set the matching engine
// needs to report order and trade lifecycle events.
type Sink interface {
	PutOrder(o *Order, event types.OrderEventType)
	PutTrade(t *Trade)
}
