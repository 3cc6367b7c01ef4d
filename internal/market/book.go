package market

import (
	"sort"

	"github.com/google/uuid"

	"matchengine/internal/money"
	"matchengine/pkg/types"
)

// book holds the live state of one market: its two price-time-priority
// sides, a flat index for cancel-by-id, and a per-user index for
// cancel-all and order_query. Order books in this engine stay small enough
// (hundreds of resting orders) that a sorted slice with binary-search
// insertion beats the complexity of a balanced tree.
type book struct {
	cfg Config

	asks []*Order // sorted by askLess: (price ASC, order_id ASC)
	bids []*Order // sorted by bidLess: (price DESC, order_id ASC)

	byID   map[uint64]*Order
	byUser map[uuid.UUID]map[uint64]*Order

	lastPrice  money.Decimal
	tradeCount uint64
}

func newBook(cfg Config) *book {
	return &book{
		cfg:    cfg,
		byID:   make(map[uint64]*Order),
		byUser: make(map[uuid.UUID]map[uint64]*Order),
	}
}

// askLess is the ASK side's natural order: lower price first, and at equal
// price the lower (earlier) order id first — MarketKeyAsk's comparison.
func askLess(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.ID < b.ID
}

// bidLess is the BID side's order: higher price first, same id tie-break
// as askLess — MarketKeyBid's comparison.
func bidLess(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.ID < b.ID
}

func (b *book) sideLess(side types.Side) func(x, y *Order) bool {
	if side == types.Ask {
		return askLess
	}
	return bidLess
}

func (b *book) sideSlice(side types.Side) *[]*Order {
	if side == types.Ask {
		return &b.asks
	}
	return &b.bids
}

// insert places o into its side's sorted slice and both indices.
func (b *book) insert(o *Order) {
	slice := b.sideSlice(o.Side)
	less := b.sideLess(o.Side)
	pos := sort.Search(len(*slice), func(i int) bool {
		return less(o, (*slice)[i])
	})
	*slice = append(*slice, nil)
	copy((*slice)[pos+1:], (*slice)[pos:])
	(*slice)[pos] = o

	b.byID[o.ID] = o
	users, ok := b.byUser[o.UserID]
	if !ok {
		users = make(map[uint64]*Order)
		b.byUser[o.UserID] = users
	}
	users[o.ID] = o
}

// remove deletes o from its side's slice and both indices. No-op if o is
// not currently resting.
func (b *book) remove(o *Order) {
	slice := b.sideSlice(o.Side)
	less := b.sideLess(o.Side)
	pos := sort.Search(len(*slice), func(i int) bool {
		return less(o, (*slice)[i]) || (!less((*slice)[i], o) && (*slice)[i].ID >= o.ID)
	})
	if pos < len(*slice) && (*slice)[pos].ID == o.ID {
		*slice = append((*slice)[:pos], (*slice)[pos+1:]...)
	}
	delete(b.byID, o.ID)
	if users, ok := b.byUser[o.UserID]; ok {
		delete(users, o.ID)
		if len(users) == 0 {
			delete(b.byUser, o.UserID)
		}
	}
}

// best returns the best resting order on side, or nil if that side is
// empty.
func (b *book) best(side types.Side) *Order {
	slice := b.sideSlice(side)
	if len(*slice) == 0 {
		return nil
	}
	return (*slice)[0]
}

// ordersForUser returns a user's resting orders in this market, sorted by
// order id for deterministic iteration (map iteration order is not).
func (b *book) ordersForUser(user uuid.UUID) []*Order {
	users, ok := b.byUser[user]
	if !ok {
		return nil
	}
	out := make([]*Order, 0, len(users))
	for _, o := range users {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DepthLevel is one aggregated price level.
type DepthLevel struct {
	Price  money.Decimal
	Amount money.Decimal
}

// Depth aggregates up to limit price levels per side. If interval > 0,
// asks bucket upward to the next multiple of interval and bids bucket
// downward to the previous multiple.
func (b *book) Depth(limit int, interval money.Decimal) (asks, bids []DepthLevel) {
	asks = aggregateDepth(b.asks, limit, interval, true)
	bids = aggregateDepth(b.bids, limit, interval, false)
	return asks, bids
}

func aggregateDepth(orders []*Order, limit int, interval money.Decimal, roundUp bool) []DepthLevel {
	levels := make([]DepthLevel, 0, limit)
	index := make(map[string]int)
	for _, o := range orders {
		price := o.Price
		if interval.IsSignPositive() {
			price = bucketPrice(price, interval, roundUp)
		}
		key := price.String()
		if idx, ok := index[key]; ok {
			levels[idx].Amount = levels[idx].Amount.Add(o.Remain)
			continue
		}
		if len(levels) >= limit {
			continue
		}
		index[key] = len(levels)
		levels = append(levels, DepthLevel{Price: price, Amount: o.Remain})
	}
	return levels
}

// bucketPrice rounds price to the next (roundUp, i.e. ceiling) or previous
// (floor) multiple of interval. RoundDP(0) alone rounds to the nearest
// integer, not toward either bound, so both directions bump the result back
// onto the correct side when rounding crossed it.
func bucketPrice(price, interval money.Decimal, roundUp bool) money.Decimal {
	q, err := price.Div(interval)
	if err != nil {
		return price
	}
	n := q.RoundDP(0)
	if roundUp && n.LessThan(q) {
		n = n.Add(money.NewFromInt(1))
	} else if !roundUp && n.GreaterThan(q) {
		n = n.Sub(money.NewFromInt(1))
	}
	return n.Mul(interval)
}

// Status summarizes a book's current size.
type Status struct {
	AskCount   int
	BidCount   int
	AskRemain  money.Decimal
	BidRemain  money.Decimal
	TradeCount uint64
	LastPrice  money.Decimal
}

func (b *book) status() Status {
	s := Status{
		AskCount:   len(b.asks),
		BidCount:   len(b.bids),
		AskRemain:  money.Zero,
		BidRemain:  money.Zero,
		TradeCount: b.tradeCount,
		LastPrice:  b.lastPrice,
	}
	for _, o := range b.asks {
		s.AskRemain = s.AskRemain.Add(o.Remain)
	}
	for _, o := range b.bids {
		s.BidRemain = s.BidRemain.Add(o.Remain)
	}
	return s
}
