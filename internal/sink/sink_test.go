package sink

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/internal/money"
	"matchengine/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryRecordsEverything(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	if !m.ServiceAvailable() {
		t.Fatal("memory sink should always be available")
	}
	m.PutDeposit(balance.History{UserID: uuid.New(), Asset: "USDT", Change: money.MustFromString("10")})
	m.PutTransfer(types.InternalTx{Asset: "USDT"})
	if len(m.Deposits) != 1 || len(m.Transfers) != 1 {
		t.Fatalf("deposits=%d transfers=%d, want 1 each", len(m.Deposits), len(m.Transfers))
	}
}

func TestFileAppendsNDJSONLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.ndjson")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.PutDeposit(balance.History{UserID: uuid.New(), Asset: "ETH", Change: money.MustFromString("1")})
	f.PutTransfer(types.InternalTx{Asset: "ETH"})
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := splitLines(string(data))
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func TestCompositeUnavailableIfAnyChildIs(t *testing.T) {
	t.Parallel()
	bus := NewMessageBus(1, discardLogger())
	bus.PutDeposit(balance.History{}) // fill the one slot
	c := NewComposite(NewMemory(), bus)
	if c.ServiceAvailable() {
		t.Fatal("composite should be unavailable once one child's topic is full")
	}
}

func TestDBWriterPutOrderOnlyPersistsTerminalEvents(t *testing.T) {
	t.Parallel()
	w, err := OpenDBWriter(filepath.Join(t.TempDir(), "db"), 16, discardLogger())
	if err != nil {
		t.Fatalf("OpenDBWriter: %v", err)
	}
	defer w.Close()

	if !w.ServiceAvailable() {
		t.Fatal("fresh dbwriter should be available")
	}

	o := &market.Order{ID: 1}
	w.PutOrder(o, types.OrderPut)
	w.PutOrder(o, types.OrderUpdate)
	if got := atomic.LoadUint64(&w.seq); got != 0 {
		t.Fatalf("writes enqueued for PUT/UPDATE = %d, want 0", got)
	}
	w.PutOrder(o, types.OrderFinish)
	w.PutOrder(o, types.OrderExpired)
	if got := atomic.LoadUint64(&w.seq); got != 2 {
		t.Fatalf("writes enqueued for FINISH/EXPIRED = %d, want 2", got)
	}
}
