package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tradeflow/errs"
	"tradeflow/models"
)

// captureSession connects a session to a server that records every text
// frame it receives.
func captureSession(t *testing.T) (*Session[models.MarketDataEvent, *models.MarketDataEvent], chan []byte) {
	t.Helper()
	received := make(chan []byte, 8)
	s := newConnectedSession(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	}, nil)
	t.Cleanup(func() { s.Disconnect() })
	return s, received
}

func nextFrame(t *testing.T, received chan []byte) map[string]json.RawMessage {
	t.Helper()
	select {
	case msg := <-received:
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(msg, &envelope); err != nil {
			t.Fatalf("frame is not a JSON object: %v", err)
		}
		return envelope
	case <-time.After(time.Second):
		t.Fatal("server did not receive a frame")
		return nil
	}
}

func fieldString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("field is not a string: %s", raw)
	}
	return s
}

func singleArg(t *testing.T, envelope map[string]json.RawMessage) map[string]json.RawMessage {
	t.Helper()
	var args []map[string]json.RawMessage
	if err := json.Unmarshal(envelope["args"], &args); err != nil {
		t.Fatalf("args: %v", err)
	}
	if len(args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(args))
	}
	return args[0]
}

func requireRequestID(t *testing.T, envelope map[string]json.RawMessage) {
	t.Helper()
	id := fieldString(t, envelope["id"])
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q is not a uuid: %v", id, err)
	}
}

func TestCommandsRequireConnection(t *testing.T) {
	ctx := context.Background()
	s := NewSession[models.MarketDataEvent](nil)

	commands := map[string]func() error{
		"PlaceOrder":   func() error { return s.PlaceOrder(ctx, models.Order{}) },
		"PlaceOrders":  func() error { return s.PlaceOrders(ctx, nil) },
		"CancelOrder":  func() error { return s.CancelOrder(ctx, models.Cancel{}) },
		"CancelOrders": func() error { return s.CancelOrders(ctx, nil) },
		"AmendOrder":   func() error { return s.AmendOrder(ctx, models.Amend{}) },
		"AmendOrders":  func() error { return s.AmendOrders(ctx, nil) },
		"LimitBuy":     func() error { return s.LimitBuy(ctx, "BTC-USDT", "1", "50000", models.Limit) },
		"MarketSell":   func() error { return s.MarketSell(ctx, "BTC-USDT", "1") },
		"Subscribe":    func() error { return s.Subscribe(ctx, nil) },
		"Unsubscribe":  func() error { return s.Unsubscribe(ctx, nil) },
	}
	for name, call := range commands {
		if err := call(); !errs.Is(err, errs.KindNotConnected) {
			t.Errorf("%s: expected not_connected, got %v", name, err)
		}
	}
}

func TestLimitBuyEnvelope(t *testing.T) {
	s, received := captureSession(t)
	if err := s.LimitBuy(context.Background(), "BTC-USDT", "1", "50000", models.Limit); err != nil {
		t.Fatalf("limit buy: %v", err)
	}

	envelope := nextFrame(t, received)
	requireRequestID(t, envelope)
	if op := fieldString(t, envelope["op"]); op != "order" {
		t.Fatalf("op = %q", op)
	}
	arg := singleArg(t, envelope)
	want := map[string]string{
		"instId":  "BTC-USDT",
		"tdMode":  "cross",
		"side":    "buy",
		"ordType": "limit",
		"sz":      "1",
		"px":      "50000",
	}
	for key, val := range want {
		if got := fieldString(t, arg[key]); got != val {
			t.Errorf("%s = %q, want %q", key, got, val)
		}
	}
	if _, ok := arg["posSide"]; ok {
		t.Error("posSide must be absent in net mode")
	}
}

func TestLimitSellEnvelope(t *testing.T) {
	s, received := captureSession(t)
	if err := s.LimitSell(context.Background(), "ETH-USDT", "2", "2000", models.PostOnly); err != nil {
		t.Fatalf("limit sell: %v", err)
	}

	arg := singleArg(t, nextFrame(t, received))
	if side := fieldString(t, arg["side"]); side != "sell" {
		t.Fatalf("side = %q", side)
	}
	if ot := fieldString(t, arg["ordType"]); ot != "post_only" {
		t.Fatalf("ordType = %q", ot)
	}
	if mode := fieldString(t, arg["tdMode"]); mode != "cross" {
		t.Fatalf("tdMode = %q", mode)
	}
}

func TestLimitBuyInvalidInput(t *testing.T) {
	s, received := captureSession(t)

	if err := s.LimitBuy(context.Background(), "BTC-USDT", "1", "not-a-price", models.Limit); !errs.Is(err, errs.KindPrice) {
		t.Fatalf("expected price error, got %v", err)
	}
	if err := s.LimitBuy(context.Background(), "BTC-USDT", "", "50000", models.Limit); !errs.Is(err, errs.KindOrder) {
		t.Fatalf("expected order error, got %v", err)
	}
	select {
	case msg := <-received:
		t.Fatalf("rejected command must not reach the socket: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMarketBuyEnvelope(t *testing.T) {
	s, received := captureSession(t)
	if err := s.MarketBuy(context.Background(), "BTC-USDT", "0.5"); err != nil {
		t.Fatalf("market buy: %v", err)
	}

	arg := singleArg(t, nextFrame(t, received))
	if mode := fieldString(t, arg["tdMode"]); mode != "cash" {
		t.Fatalf("tdMode = %q", mode)
	}
	if ot := fieldString(t, arg["ordType"]); ot != "market" {
		t.Fatalf("ordType = %q", ot)
	}
	if sz := fieldString(t, arg["sz"]); sz != "0.5" {
		t.Fatalf("sz = %q", sz)
	}
	if _, ok := arg["px"]; ok {
		t.Error("market order must not carry a price")
	}
}

func TestCancelAndAmendEnvelopes(t *testing.T) {
	s, received := captureSession(t)

	if err := s.CancelOrder(context.Background(), models.Cancel{Symbol: "BTC-USDT", OrderID: "312269865356374016"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	envelope := nextFrame(t, received)
	requireRequestID(t, envelope)
	if op := fieldString(t, envelope["op"]); op != "cancel-order" {
		t.Fatalf("op = %q", op)
	}
	arg := singleArg(t, envelope)
	if id := fieldString(t, arg["ordId"]); id != "312269865356374016" {
		t.Fatalf("ordId = %q", id)
	}

	if err := s.AmendOrder(context.Background(), models.Amend{Symbol: "BTC-USDT", OrderID: "312269865356374016", NewPrice: "51000"}); err != nil {
		t.Fatalf("amend: %v", err)
	}
	envelope = nextFrame(t, received)
	if op := fieldString(t, envelope["op"]); op != "amend-order" {
		t.Fatalf("op = %q", op)
	}
	arg = singleArg(t, envelope)
	if px := fieldString(t, arg["newPx"]); px != "51000" {
		t.Fatalf("newPx = %q", px)
	}
}

func TestPlaceOrdersBatch(t *testing.T) {
	s, received := captureSession(t)
	orders := []models.Order{
		{Symbol: "BTC-USDT", TradeMode: models.Cash, Side: models.Buy, OrderType: models.Limit, Quantity: "1", Price: "50000"},
		{Symbol: "ETH-USDT", TradeMode: models.Cash, Side: models.Sell, OrderType: models.Limit, Quantity: "2", Price: "2000"},
	}
	if err := s.PlaceOrders(context.Background(), orders); err != nil {
		t.Fatalf("place orders: %v", err)
	}

	envelope := nextFrame(t, received)
	requireRequestID(t, envelope)
	if op := fieldString(t, envelope["op"]); op != "batch-orders" {
		t.Fatalf("op = %q", op)
	}
	var args []json.RawMessage
	if err := json.Unmarshal(envelope["args"], &args); err != nil {
		t.Fatalf("args: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestSubscribeEnvelope(t *testing.T) {
	s, received := captureSession(t)
	args := []models.SubscriptionArg{{Channel: "trades", InstID: "BTC-USDT"}}
	if err := s.Subscribe(context.Background(), args); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	envelope := nextFrame(t, received)
	if _, ok := envelope["id"]; ok {
		t.Error("subscribe envelope must not carry a request id")
	}
	if op := fieldString(t, envelope["op"]); op != "subscribe" {
		t.Fatalf("op = %q", op)
	}
	arg := singleArg(t, envelope)
	if ch := fieldString(t, arg["channel"]); ch != "trades" {
		t.Fatalf("channel = %q", ch)
	}
}
