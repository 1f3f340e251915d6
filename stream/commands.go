package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeflow/errs"
	"tradeflow/logger"
	"tradeflow/models"
)

// request serializes a command envelope and writes it as one text frame.
// The connection is checked before anything is encoded, so a disconnected
// session never touches the socket.
func (s *Session[T, PT]) request(ctx context.Context, envelope interface{}) error {
	if s.conn == nil {
		return errs.NotConnected("request")
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return errs.JSON(err)
	}
	if err := s.SendRaw(ctx, string(payload)); err != nil {
		return err
	}
	logger.IncrementCommandSent(len(payload))
	return nil
}

// PlaceOrder submits a single order under a fresh request id.
func (s *Session[T, PT]) PlaceOrder(ctx context.Context, order models.Order) error {
	return s.request(ctx, models.OrderRequest{
		ID:   uuid.NewString(),
		Op:   models.OpOrder,
		Args: []models.Order{order},
	})
}

// PlaceOrders submits a batch of orders in one envelope.
func (s *Session[T, PT]) PlaceOrders(ctx context.Context, orders []models.Order) error {
	return s.request(ctx, models.OrderRequest{
		ID:   uuid.NewString(),
		Op:   models.OpBatchOrders,
		Args: orders,
	})
}

// CancelOrder cancels one resting order.
func (s *Session[T, PT]) CancelOrder(ctx context.Context, cancel models.Cancel) error {
	return s.request(ctx, models.CancelRequest{
		ID:   uuid.NewString(),
		Op:   models.OpCancelOrder,
		Args: []models.Cancel{cancel},
	})
}

// CancelOrders cancels a batch of orders in one envelope.
func (s *Session[T, PT]) CancelOrders(ctx context.Context, cancels []models.Cancel) error {
	return s.request(ctx, models.CancelRequest{
		ID:   uuid.NewString(),
		Op:   models.OpBatchCancel,
		Args: cancels,
	})
}

// AmendOrder amends one resting order.
func (s *Session[T, PT]) AmendOrder(ctx context.Context, amend models.Amend) error {
	return s.request(ctx, models.AmendRequest{
		ID:   uuid.NewString(),
		Op:   models.OpAmendOrder,
		Args: []models.Amend{amend},
	})
}

// AmendOrders amends a batch of orders in one envelope.
func (s *Session[T, PT]) AmendOrders(ctx context.Context, amends []models.Amend) error {
	return s.request(ctx, models.AmendRequest{
		ID:   uuid.NewString(),
		Op:   models.OpBatchAmend,
		Args: amends,
	})
}

// LimitBuy places a limit-style buy in cross margin mode with net position
// side. Quantity and price must be decimal strings.
func (s *Session[T, PT]) LimitBuy(ctx context.Context, symbol, qty, price string, orderType models.OrderType) error {
	return s.placeLimit(ctx, symbol, qty, price, models.Buy, orderType)
}

// LimitSell places a limit-style sell in cross margin mode with net position
// side. Quantity and price must be decimal strings.
func (s *Session[T, PT]) LimitSell(ctx context.Context, symbol, qty, price string, orderType models.OrderType) error {
	return s.placeLimit(ctx, symbol, qty, price, models.Sell, orderType)
}

func (s *Session[T, PT]) placeLimit(ctx context.Context, symbol, qty, price string, side models.OrderSide, orderType models.OrderType) error {
	if _, err := decimal.NewFromString(qty); err != nil {
		return errs.InvalidOrder(fmt.Sprintf("invalid quantity %q", qty))
	}
	if _, err := decimal.NewFromString(price); err != nil {
		return errs.InvalidPrice()
	}
	return s.PlaceOrder(ctx, models.Order{
		Symbol:    symbol,
		TradeMode: models.Cross,
		Side:      side,
		// position side stays unset for net mode
		OrderType: orderType,
		Quantity:  qty,
		Price:     price,
	})
}

// MarketBuy places a market buy in cash mode. Quantity must be a decimal
// string; its unit follows the venue's market-order convention.
func (s *Session[T, PT]) MarketBuy(ctx context.Context, symbol, qty string) error {
	return s.placeMarket(ctx, symbol, qty, models.Buy)
}

// MarketSell places a market sell in cash mode.
func (s *Session[T, PT]) MarketSell(ctx context.Context, symbol, qty string) error {
	return s.placeMarket(ctx, symbol, qty, models.Sell)
}

func (s *Session[T, PT]) placeMarket(ctx context.Context, symbol, qty string, side models.OrderSide) error {
	if _, err := decimal.NewFromString(qty); err != nil {
		return errs.InvalidOrder(fmt.Sprintf("invalid quantity %q", qty))
	}
	return s.PlaceOrder(ctx, models.Order{
		Symbol:    symbol,
		TradeMode: models.Cash,
		Side:      side,
		OrderType: models.Market,
		Quantity:  qty,
	})
}

// Subscribe requests the given push channels.
func (s *Session[T, PT]) Subscribe(ctx context.Context, args []models.SubscriptionArg) error {
	return s.request(ctx, models.SubscribeRequest{Op: models.OpSubscribe, Args: args})
}

// Unsubscribe leaves the given push channels.
func (s *Session[T, PT]) Unsubscribe(ctx context.Context, args []models.SubscriptionArg) error {
	return s.request(ctx, models.SubscribeRequest{Op: models.OpUnsubscribe, Args: args})
}
