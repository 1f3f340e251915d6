// Package models holds the wire shapes exchanged with the venue over the
// websocket trading channel. Field names follow the venue's JSON contract;
// optional fields are modeled as pointers or omitempty strings so presence
// and absence survive a round trip.
package models

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// TradeMode selects the margin mode an order trades under.
type TradeMode string

const (
	Isolated TradeMode = "isolated"
	Cross    TradeMode = "cross"
	Cash     TradeMode = "cash"
)

// PositionSide applies in long/short position mode. Leaving it unset on an
// order means net mode.
type PositionSide string

const (
	Net   PositionSide = "net"
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// OrderType is the venue's execution type for an order.
type OrderType string

const (
	Market          OrderType = "market"
	Limit           OrderType = "limit"
	PostOnly        OrderType = "post_only"
	FOK             OrderType = "fok"
	IOC             OrderType = "ioc"
	OptimalLimitIOC OrderType = "optimal_limit_ioc"
)

// Order is a single order placement request. Quantity is always present and
// textual per the venue's decimal encoding; Price is required for limit-style
// orders and stays with the caller to set correctly for market orders.
type Order struct {
	Symbol         string        `json:"instId"`
	TradeMode      TradeMode     `json:"tdMode"`
	Currency       string        `json:"ccy,omitempty"`
	ClientOrderID  string        `json:"clOrdId,omitempty"`
	Tag            string        `json:"tag,omitempty"`
	Side           OrderSide     `json:"side"`
	PositionSide   *PositionSide `json:"posSide,omitempty"`
	OrderType      OrderType     `json:"ordType"`
	Quantity       string        `json:"sz"`
	Price          string        `json:"px,omitempty"`
	ReduceOnly     *bool         `json:"reduceOnly,omitempty"`
	TargetCurrency string        `json:"tgtCcy,omitempty"`
}

// Cancel identifies an order to cancel, by exchange id or client id.
type Cancel struct {
	Symbol        string `json:"instId"`
	OrderID       string `json:"ordId,omitempty"`
	ClientOrderID string `json:"clOrdId,omitempty"`
}

// Amend modifies the price and/or quantity of a resting order.
type Amend struct {
	Symbol        string `json:"instId"`
	OrderID       string `json:"ordId,omitempty"`
	ClientOrderID string `json:"clOrdId,omitempty"`
	RequestID     string `json:"reqId,omitempty"`
	NewQuantity   string `json:"newSz,omitempty"`
	NewPrice      string `json:"newPx,omitempty"`
	CancelOnFail  *bool  `json:"cxlOnFail,omitempty"`
}

// Operation tags carried in the request envelopes.
const (
	OpOrder       = "order"
	OpBatchOrders = "batch-orders"
	OpCancelOrder = "cancel-order"
	OpBatchCancel = "batch-cancel-orders"
	OpAmendOrder  = "amend-order"
	OpBatchAmend  = "batch-amend-orders"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// OrderRequest is the outbound envelope for order placement operations.
type OrderRequest struct {
	ID   string  `json:"id"`
	Op   string  `json:"op"`
	Args []Order `json:"args"`
}

// CancelRequest is the outbound envelope for cancel operations.
type CancelRequest struct {
	ID   string   `json:"id"`
	Op   string   `json:"op"`
	Args []Cancel `json:"args"`
}

// AmendRequest is the outbound envelope for amend operations.
type AmendRequest struct {
	ID   string  `json:"id"`
	Op   string  `json:"op"`
	Args []Amend `json:"args"`
}

// SubscribeRequest subscribes to or unsubscribes from push channels.
type SubscribeRequest struct {
	Op   string            `json:"op"`
	Args []SubscriptionArg `json:"args"`
}
