// Package sink implements the pluggable event-sink fan-out (C10): every
// domain event the core produces — balance change, deposit/withdraw, order
// lifecycle, trade, internal transfer — is handed to an EventSink, which is
// responsible for durable or observable delivery without ever blocking the
// single writer.
package sink

import (
	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/pkg/types"
)

// EventSink is the full capability set a concrete sink implements.
// ServiceAvailable gates new mutations at the controller (§4.8 step 1):
// when it returns false the controller rejects the operation before any
// state mutation, so a sink's backpressure can never be observed as a
// half-applied op.
type EventSink interface {
	ServiceAvailable() bool
	PutBalance(h balance.History)
	PutDeposit(h balance.History)
	PutWithdraw(h balance.History)
	PutOrder(o *market.Order, event types.OrderEventType)
	PutTrade(t *market.Trade)
	PutTransfer(tx types.InternalTx)
}
