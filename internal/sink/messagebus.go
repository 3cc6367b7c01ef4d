package sink

import (
	"log/slog"

	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/pkg/types"
)

// Topic names a MessageBus channel.
type Topic string

const (
	TopicBalances  Topic = "balances"
	TopicOrders    Topic = "orders"
	TopicTrades    Topic = "trades"
	TopicTransfers Topic = "transfers"
)

// MessageBus publishes every event onto a bounded, per-topic channel for a
// consumer (a websocket fan-out, a metrics exporter) to drain. A full topic
// channel drops the event and flips the bus unavailable until the backlog
// clears, mirroring the teacher's WS dispatch channels (drop + log on a
// full buffer) rather than blocking the single writer.
type MessageBus struct {
	logger *slog.Logger

	balances  chan balance.History
	deposits  chan balance.History
	withdraws chan balance.History
	orders    chan MemoryOrderEvent
	trades    chan *market.Trade
	transfers chan types.InternalTx
}

// NewMessageBus builds a bus with the given per-topic buffer size.
func NewMessageBus(bufSize int, logger *slog.Logger) *MessageBus {
	return &MessageBus{
		logger:    logger.With("component", "sink.messagebus"),
		balances:  make(chan balance.History, bufSize),
		deposits:  make(chan balance.History, bufSize),
		withdraws: make(chan balance.History, bufSize),
		orders:    make(chan MemoryOrderEvent, bufSize),
		trades:    make(chan *market.Trade, bufSize),
		transfers: make(chan types.InternalTx, bufSize),
	}
}

func (b *MessageBus) Balances() <-chan balance.History  { return b.balances }
func (b *MessageBus) Deposits() <-chan balance.History  { return b.deposits }
func (b *MessageBus) Withdraws() <-chan balance.History { return b.withdraws }
func (b *MessageBus) Orders() <-chan MemoryOrderEvent   { return b.orders }
func (b *MessageBus) Trades() <-chan *market.Trade      { return b.trades }
func (b *MessageBus) Transfers() <-chan types.InternalTx { return b.transfers }

// ServiceAvailable reports whether every topic has headroom. It is a cheap
// heuristic (channel length vs capacity), not a hard guarantee — a producer
// racing this check can still hit a full channel and drop.
func (b *MessageBus) ServiceAvailable() bool {
	return len(b.balances) < cap(b.balances) &&
		len(b.deposits) < cap(b.deposits) &&
		len(b.withdraws) < cap(b.withdraws) &&
		len(b.orders) < cap(b.orders) &&
		len(b.trades) < cap(b.trades) &&
		len(b.transfers) < cap(b.transfers)
}

func (b *MessageBus) PutBalance(h balance.History) {
	select {
	case b.balances <- h:
	default:
		b.logger.Warn("balances topic full, dropping event")
	}
}

func (b *MessageBus) PutDeposit(h balance.History) {
	select {
	case b.deposits <- h:
	default:
		b.logger.Warn("deposits topic full, dropping event")
	}
}

func (b *MessageBus) PutWithdraw(h balance.History) {
	select {
	case b.withdraws <- h:
	default:
		b.logger.Warn("withdraws topic full, dropping event")
	}
}

func (b *MessageBus) PutOrder(o *market.Order, event types.OrderEventType) {
	select {
	case b.orders <- MemoryOrderEvent{Order: o, Event: event}:
	default:
		b.logger.Warn("orders topic full, dropping event", "order_id", o.ID)
	}
}

func (b *MessageBus) PutTrade(t *market.Trade) {
	select {
	case b.trades <- t:
	default:
		b.logger.Warn("trades topic full, dropping event", "trade_id", t.ID)
	}
}

func (b *MessageBus) PutTransfer(tx types.InternalTx) {
	select {
	case b.transfers <- tx:
	default:
		b.logger.Warn("transfers topic full, dropping event")
	}
}
