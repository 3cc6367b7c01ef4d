package market

import (
	"testing"

	"github.com/google/uuid"

	"matchengine/internal/money"
	"matchengine/pkg/types"
)

func newOrder(id uint64, side types.Side, price, remain string) *Order {
	return &Order{
		ID:     id,
		Side:   side,
		Price:  money.MustFromString(price),
		Amount: money.MustFromString(remain),
		Remain: money.MustFromString(remain),
		UserID: uuid.New(),
	}
}

func TestAskSortedPriceThenID(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})

	b.insert(newOrder(3, types.Ask, "100", "1"))
	b.insert(newOrder(1, types.Ask, "100", "1"))
	b.insert(newOrder(2, types.Ask, "99", "1"))

	if len(b.asks) != 3 {
		t.Fatalf("len(asks) = %d, want 3", len(b.asks))
	}
	// lowest price first; at equal price, lower id first
	want := []uint64{2, 1, 3}
	for i, id := range want {
		if b.asks[i].ID != id {
			t.Errorf("asks[%d].ID = %d, want %d", i, b.asks[i].ID, id)
		}
	}
}

func TestBidSortedPriceDescThenID(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})

	b.insert(newOrder(1, types.Bid, "100", "1"))
	b.insert(newOrder(2, types.Bid, "105", "1"))
	b.insert(newOrder(3, types.Bid, "105", "1"))

	want := []uint64{2, 3, 1}
	for i, id := range want {
		if b.bids[i].ID != id {
			t.Errorf("bids[%d].ID = %d, want %d", i, b.bids[i].ID, id)
		}
	}
}

func TestBestReturnsFrontOfSide(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})
	if b.best(types.Ask) != nil {
		t.Fatal("best on empty side should be nil")
	}

	o := newOrder(1, types.Ask, "100", "1")
	b.insert(o)
	if got := b.best(types.Ask); got != o {
		t.Errorf("best = %v, want %v", got, o)
	}
}

func TestRemoveDeletesFromBothIndices(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})
	o := newOrder(1, types.Ask, "100", "1")
	b.insert(o)

	b.remove(o)
	if len(b.asks) != 0 {
		t.Errorf("asks should be empty after remove, got %d", len(b.asks))
	}
	if _, ok := b.byID[o.ID]; ok {
		t.Error("byID should not contain removed order")
	}
	if _, ok := b.byUser[o.UserID]; ok {
		t.Error("byUser should not contain removed order's user after its only order is removed")
	}
}

func TestOrdersForUserSortedByID(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})
	u := uuid.New()
	o1 := newOrder(5, types.Ask, "100", "1")
	o1.UserID = u
	o2 := newOrder(2, types.Ask, "101", "1")
	o2.UserID = u
	b.insert(o1)
	b.insert(o2)

	got := b.ordersForUser(u)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 5 {
		t.Errorf("ordersForUser = %+v, want [2,5] order", got)
	}
}

func TestDepthAggregatesByPrice(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})
	b.insert(newOrder(1, types.Ask, "100", "1"))
	b.insert(newOrder(2, types.Ask, "100", "2"))
	b.insert(newOrder(3, types.Ask, "101", "3"))

	asks, _ := b.Depth(10, money.Zero)
	if len(asks) != 2 {
		t.Fatalf("len(asks depth) = %d, want 2", len(asks))
	}
	if asks[0].Amount.String() != "3" {
		t.Errorf("level[0].Amount = %s, want 3 (aggregated)", asks[0].Amount)
	}
}

func TestDepthBucketsByIntervalAskUpBidDown(t *testing.T) {
	t.Parallel()
	b := newBook(Config{Name: "ETH_USDT"})
	b.insert(newOrder(1, types.Ask, "102", "1"))
	b.insert(newOrder(2, types.Bid, "108", "1"))

	asks, bids := b.Depth(10, money.MustFromString("10"))
	if len(asks) != 1 || asks[0].Price.String() != "110" {
		t.Fatalf("ask bucket = %+v, want price 110 (ceil of 102 to nearest 10)", asks)
	}
	if len(bids) != 1 || bids[0].Price.String() != "100" {
		t.Fatalf("bid bucket = %+v, want price 100 (floor of 108 to nearest 10)", bids)
	}
}
