package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"tradeflow/errs"
)

func TestOrderWireNames(t *testing.T) {
	pos := Long
	reduce := true
	order := Order{
		Symbol:         "BTC-USDT-SWAP",
		TradeMode:      Isolated,
		Currency:       "USDT",
		ClientOrderID:  "cli-1",
		Tag:            "tf",
		Side:           Sell,
		PositionSide:   &pos,
		OrderType:      Limit,
		Quantity:       "2",
		Price:          "41000.5",
		ReduceOnly:     &reduce,
		TargetCurrency: "base_ccy",
	}
	data, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]interface{}{
		"instId":     "BTC-USDT-SWAP",
		"tdMode":     "isolated",
		"ccy":        "USDT",
		"clOrdId":    "cli-1",
		"tag":        "tf",
		"side":       "sell",
		"posSide":    "long",
		"ordType":    "limit",
		"sz":         "2",
		"px":         "41000.5",
		"reduceOnly": true,
		"tgtCcy":     "base_ccy",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("wire fields mismatch:\ngot  %v\nwant %v", fields, want)
	}
}

func TestOrderRoundTrip(t *testing.T) {
	pos := Short
	reduce := false
	orig := Order{
		Symbol:       "ETH-USDT",
		TradeMode:    Cross,
		Side:         Buy,
		PositionSide: &pos,
		OrderType:    PostOnly,
		Quantity:     "0.5",
		Price:        "2000",
		ReduceOnly:   &reduce,
	}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Order
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", back, orig)
	}
}

func TestOrderOptionalFieldsAbsent(t *testing.T) {
	order := Order{
		Symbol:    "BTC-USDT",
		TradeMode: Cash,
		Side:      Buy,
		OrderType: Market,
		Quantity:  "1",
	}
	data, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"px", "posSide", "reduceOnly", "ccy", "clOrdId", "tag", "tgtCcy"} {
		if _, ok := fields[key]; ok {
			t.Errorf("optional field %s should be absent: %v", key, fields)
		}
	}
}

func TestDecodeAcknowledgement(t *testing.T) {
	ack, err := DecodeAcknowledgement([]byte(`{"id":"req-1","op":"order","code":"0","msg":"","data":[{"sCode":"0"}],"inTime":"1","outTime":"2"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.ID != "req-1" || ack.Op != "order" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if err := ack.Err(); err != nil {
		t.Fatalf("code 0 should not be an error: %v", err)
	}
}

func TestDecodeAcknowledgementSubscription(t *testing.T) {
	ack, err := DecodeAcknowledgement([]byte(`{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"},"connId":"a4d3ae55"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Event != "subscribe" || ack.Arg == nil || ack.Arg.Channel != "trades" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestDecodeAcknowledgementRejectsUnknownShape(t *testing.T) {
	if _, err := DecodeAcknowledgement([]byte(`{"foo":"bar"}`)); err == nil {
		t.Fatal("unknown shape should fail")
	}
	if _, err := DecodeAcknowledgement([]byte(`{}`)); err == nil {
		t.Fatal("empty object should fail")
	}
}

func TestAcknowledgementVenueError(t *testing.T) {
	ack, err := DecodeAcknowledgement([]byte(`{"id":"req-2","op":"order","code":"51000","msg":"parameter error"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ackErr := ack.Err()
	if !errs.Is(ackErr, errs.KindVenue) {
		t.Fatalf("expected venue error, got %v", ackErr)
	}
	var e *errs.Error
	if !errors.As(ackErr, &e) || e.Venue.Code != 51000 || e.Venue.Msg != "parameter error" {
		t.Fatalf("venue fields not preserved: %v", ackErr)
	}
}

func TestMarketDataEventDecodeFrame(t *testing.T) {
	var ev MarketDataEvent
	payload := []byte(`{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[{"px":"50000","sz":"1"}]}`)
	if err := ev.DecodeFrame(payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Arg.Channel != "trades" || ev.Arg.InstID != "BTC-USDT" || len(ev.Data) != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestMarketDataEventRejectsControlPayloads(t *testing.T) {
	var ev MarketDataEvent
	if err := ev.DecodeFrame([]byte(`{"event":"subscribe","arg":{"channel":"trades"}}`)); err == nil {
		t.Fatal("subscription ack should not decode as an event")
	}
	if err := ev.DecodeFrame([]byte(`{"id":"1","op":"order","code":"0","msg":""}`)); err == nil {
		t.Fatal("order ack should not decode as an event")
	}
}

func TestEnvelopeShapes(t *testing.T) {
	req := OrderRequest{ID: "id-1", Op: OpBatchOrders, Args: []Order{{Symbol: "BTC-USDT", TradeMode: Cross, Side: Buy, OrderType: Limit, Quantity: "1", Price: "50000"}}}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back OrderRequest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(req, back) {
		t.Fatalf("envelope round trip mismatch:\ngot  %+v\nwant %+v", back, req)
	}
}
