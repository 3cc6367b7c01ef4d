package sink

import (
	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/pkg/types"
)

// Composite fans out to an ordered list of child sinks. It is available
// only if every child is; a single backpressured child is enough to gate
// the whole fan-out, since the controller has no way to retry against only
// the sinks that accepted.
type Composite struct {
	children []EventSink
}

// NewComposite wires children in the given order. Order matters only in
// that it is the order each event is delivered to them — they do not
// observe each other.
func NewComposite(children ...EventSink) *Composite {
	return &Composite{children: children}
}

func (c *Composite) ServiceAvailable() bool {
	for _, child := range c.children {
		if !child.ServiceAvailable() {
			return false
		}
	}
	return true
}

func (c *Composite) PutBalance(h balance.History) {
	for _, child := range c.children {
		child.PutBalance(h)
	}
}

func (c *Composite) PutDeposit(h balance.History) {
	for _, child := range c.children {
		child.PutDeposit(h)
	}
}

func (c *Composite) PutWithdraw(h balance.History) {
	for _, child := range c.children {
		child.PutWithdraw(h)
	}
}

func (c *Composite) PutOrder(o *market.Order, event types.OrderEventType) {
	for _, child := range c.children {
		child.PutOrder(o, event)
	}
}

func (c *Composite) PutTrade(t *market.Trade) {
	for _, child := range c.children {
		child.PutTrade(t)
	}
}

func (c *Composite) PutTransfer(tx types.InternalTx) {
	for _, child := range c.children {
		child.PutTransfer(tx)
	}
}
