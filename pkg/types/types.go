// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the matching engine — side and
// order-type enums, the request/response shapes of the external RPC
// surface, and the operation-log/snapshot wire formats. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents which side of a market an order rests on.
type Side string

const (
	Ask Side = "ASK"
	Bid Side = "BID"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Ask {
		return Bid
	}
	return Ask
}

// OrderType distinguishes resting LIMIT orders from immediate-or-cancel
// MARKET orders.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// BusinessType classifies a balance update for event-sink routing and
// idempotency bookkeeping. See Balance Update Controller (C5).
type BusinessType string

const (
	BusinessDeposit  BusinessType = "DEPOSIT"
	BusinessWithdraw BusinessType = "WITHDRAW"
	BusinessTransfer BusinessType = "TRANSFER"
	BusinessTrade    BusinessType = "TRADE"
)

// Partition is one of the two balance buckets every (user, asset) pair has.
type Partition string

const (
	Available Partition = "AVAILABLE"
	Frozen    Partition = "FROZEN"
)

// OrderEventType tags an order lifecycle event handed to an EventSink.
type OrderEventType string

const (
	OrderPut     OrderEventType = "PUT"
	OrderUpdate  OrderEventType = "UPDATE"
	OrderFinish  OrderEventType = "FINISH"
	OrderExpired OrderEventType = "EXPIRED"
)

// Method names the six mutating RPCs, canonical strings used both on the
// external surface and as the OperationLog's method discriminator.
type Method string

const (
	MethodBalanceUpdate  Method = "balance_update"
	MethodOrderPut       Method = "order_put"
	MethodBatchOrderPut  Method = "batch_order_put"
	MethodOrderCancel    Method = "order_cancel"
	MethodOrderCancelAll Method = "order_cancel_all"
	MethodTransfer       Method = "transfer"
)

// ————————————————————————————————————————————————————————————————————————
// Request / response DTOs for the external RPC surface (§6)
// ————————————————————————————————————————————————————————————————————————

// BalanceUpdateRequest is the payload of the balance_update mutating RPC.
type BalanceUpdateRequest struct {
	UserID       uuid.UUID       `json:"user_id"`
	Asset        string          `json:"asset"`
	Business     string          `json:"business"`
	BusinessType BusinessType    `json:"business_type"`
	BusinessID   uint64          `json:"business_id"`
	Change       string          `json:"change"` // signed decimal, string-encoded
	Detail       json.RawMessage `json:"detail,omitempty"`
}

// OrderPutRequest is the payload of the order_put mutating RPC.
type OrderPutRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	Market     string    `json:"market"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	Amount     string    `json:"amount"`
	Price      string    `json:"price"`      // "0" for MARKET
	QuoteLimit string    `json:"quote_limit"` // MARKET BID only, "0" = unlimited
	PostOnly   bool      `json:"post_only"`
	TakerFee   string    `json:"taker_fee"`
	MakerFee   string    `json:"maker_fee"`
}

// BatchOrderPutRequest places 1..40 orders against the same market in one
// operation-log entry. Reset, if true, cancels every open order the user
// holds in Market before placing the new ones.
type BatchOrderPutRequest struct {
	UserID uuid.UUID         `json:"user_id"`
	Market string            `json:"market"`
	Reset  bool              `json:"reset"`
	Orders []OrderPutRequest `json:"orders"`
}

// OrderCancelRequest cancels a single resting order by id.
type OrderCancelRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	Market  string    `json:"market"`
	OrderID uint64    `json:"order_id"`
}

// OrderCancelAllRequest cancels every order a user holds in a market.
type OrderCancelAllRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Market string     `json:"market"`
}

// TransferRequest moves funds between two users' AVAILABLE balances.
// BusinessID is generated once, from the operation's timestamp, the first
// time the request is applied; it is then carried in the logged params so
// replay reuses the exact same idempotency key (§4.8).
type TransferRequest struct {
	From       uuid.UUID `json:"from"`
	To         uuid.UUID `json:"to"`
	Asset      string    `json:"asset"`
	Amount     string    `json:"amount"`
	Memo       string    `json:"memo,omitempty"`
	BusinessID uint64    `json:"business_id,omitempty"`
}

// InternalTx is the event emitted for an applied transfer (§4.3, §4.8).
type InternalTx struct {
	Timestamp float64   `json:"timestamp"`
	UserFrom  uuid.UUID `json:"user_from"`
	UserTo    uuid.UUID `json:"user_to"`
	Asset     string    `json:"asset"`
	Amount    string    `json:"amount"`
}

// TransferResult reports whether the transfer was applied. A false Success
// is not an error — it means amount <= 0 or exceeded the sender's balance.
type TransferResult struct {
	Success     bool   `json:"success"`
	BalanceFrom string `json:"balance_from"`
}

// BatchOrderResult is the aggregate result of batch_order_put: one entry
// per requested order, in request order.
type BatchOrderResult struct {
	OrderIDs []uint64 `json:"order_ids"`
}

// ————————————————————————————————————————————————————————————————————————
// Operation log & snapshot wire formats (§4.9, §4.11)
// ————————————————————————————————————————————————————————————————————————

// OperationLogEntry is the persisted, replayable record of one accepted
// mutating RPC. Params carries the verbatim request, JSON-encoded, so
// replay can decode it back into the matching request struct by Method.
type OperationLogEntry struct {
	ID     uint64          `json:"id"`
	UserID uuid.UUID       `json:"user_id"`
	Time   float64         `json:"time"` // seconds, fractional
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Watermarks records the last-issued id of each monotonic sequence at
// snapshot time. Replay only applies op-log entries with id > OpLog.
type Watermarks struct {
	OpLog uint64 `json:"op_log"`
	Order uint64 `json:"order"`
	Trade uint64 `json:"trade"`
}
