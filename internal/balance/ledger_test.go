package balance

import (
	"testing"

	"github.com/google/uuid"

	"matchengine/internal/asset"
	"matchengine/internal/cerr"
	"matchengine/internal/money"
	"matchengine/pkg/types"
)

func newTestLedger(t *testing.T) (*Ledger, uuid.UUID) {
	t.Helper()
	reg := asset.NewRegistry()
	if err := reg.Register(asset.Asset{ID: "ETH", PrecStore: 8, PrecShow: 6}); err != nil {
		t.Fatalf("register ETH: %v", err)
	}
	return NewLedger(reg), uuid.New()
}

func TestAddSubRoundTrip(t *testing.T) {
	t.Parallel()
	l, u := newTestLedger(t)

	if err := l.Add(u, types.Available, "ETH", money.MustFromString("5")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := l.Get(u, types.Available, "ETH"); got.String() != "5" {
		t.Errorf("balance = %s, want 5", got)
	}
	if err := l.Sub(u, types.Available, "ETH", money.MustFromString("2")); err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got := l.Get(u, types.Available, "ETH"); got.String() != "3" {
		t.Errorf("balance = %s, want 3", got)
	}
}

func TestSubInsufficientBalance(t *testing.T) {
	t.Parallel()
	l, u := newTestLedger(t)

	err := l.Sub(u, types.Available, "ETH", money.MustFromString("1"))
	if !cerr.Is(err, cerr.InsufficientBalance) {
		t.Fatalf("Sub on empty balance: err = %v, want InsufficientBalance", err)
	}
}

func TestFreezeUnfreeze(t *testing.T) {
	t.Parallel()
	l, u := newTestLedger(t)
	if err := l.Add(u, types.Available, "ETH", money.MustFromString("10")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := l.Freeze(u, "ETH", money.MustFromString("4")); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if got := l.Get(u, types.Available, "ETH"); got.String() != "6" {
		t.Errorf("available after freeze = %s, want 6", got)
	}
	if got := l.Get(u, types.Frozen, "ETH"); got.String() != "4" {
		t.Errorf("frozen after freeze = %s, want 4", got)
	}

	if err := l.Unfreeze(u, "ETH", money.MustFromString("1")); err != nil {
		t.Fatalf("Unfreeze: %v", err)
	}
	if got := l.Get(u, types.Available, "ETH"); got.String() != "7" {
		t.Errorf("available after unfreeze = %s, want 7", got)
	}
	if got := l.Get(u, types.Frozen, "ETH"); got.String() != "3" {
		t.Errorf("frozen after unfreeze = %s, want 3", got)
	}
}

func TestUnknownAssetRejected(t *testing.T) {
	t.Parallel()
	l, u := newTestLedger(t)
	err := l.Add(u, types.Available, "NOPE", money.MustFromString("1"))
	if !cerr.Is(err, cerr.InvalidArgument) {
		t.Fatalf("Add on unknown asset: err = %v, want InvalidArgument", err)
	}
}

func TestNeverNegative(t *testing.T) {
	t.Parallel()
	l, u := newTestLedger(t)
	if err := l.Add(u, types.Available, "ETH", money.MustFromString("1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Sub(u, types.Available, "ETH", money.MustFromString("2")); err == nil {
		t.Fatal("Sub beyond balance should fail, leaving balance non-negative")
	}
	if got := l.Get(u, types.Available, "ETH"); got.IsSignNegative() {
		t.Errorf("balance went negative: %s", got)
	}
}
