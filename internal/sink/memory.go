package sink

import (
	"sync"

	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/pkg/types"
)

// Memory is an in-process sink that appends every event to a slice. It is
// always available and is primarily used by tests, where durable delivery
// is not the point; internal/engine also always adds one to its composite.
type Memory struct {
	mu sync.Mutex

	Balances  []balance.History
	Deposits  []balance.History
	Withdraws []balance.History
	Orders    []MemoryOrderEvent
	Trades    []*market.Trade
	Transfers []types.InternalTx
}

// MemoryOrderEvent pairs an order snapshot with the lifecycle event that
// produced it.
type MemoryOrderEvent struct {
	Order *market.Order
	Event types.OrderEventType
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) ServiceAvailable() bool { return true }

func (m *Memory) PutBalance(h balance.History) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances = append(m.Balances, h)
}

func (m *Memory) PutDeposit(h balance.History) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deposits = append(m.Deposits, h)
}

func (m *Memory) PutWithdraw(h balance.History) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Withdraws = append(m.Withdraws, h)
}

func (m *Memory) PutOrder(o *market.Order, event types.OrderEventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.Orders = append(m.Orders, MemoryOrderEvent{Order: &cp, Event: event})
}

func (m *Memory) PutTrade(t *market.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append(m.Trades, t)
}

func (m *Memory) PutTransfer(tx types.InternalTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transfers = append(m.Transfers, tx)
}
