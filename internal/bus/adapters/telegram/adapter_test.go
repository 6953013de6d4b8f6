package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	busruntime "github.com/level5vta-creator/ejdevassistant-bot/internal/bus"
)

func newTestBus(t *testing.T) *busruntime.Inproc {
	t.Helper()
	b, err := busruntime.StartInproc(busruntime.BootstrapOptions{Component: "test"})
	if err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func sampleInbound() InboundMessage {
	return InboundMessage{
		ChatID:          42,
		MessageID:       7,
		SentAt:          time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		ChatType:        "private",
		FromUserID:      99,
		FromUsername:    "ada",
		FromDisplayName: "Ada L",
		Mentioned:       true,
		Text:            "write a quine",
	}
}

func TestHandleInboundMessagePublishesAndRoundTrips(t *testing.T) {
	t.Parallel()

	b := newTestBus(t)
	adapter, err := NewInboundAdapter(InboundAdapterOptions{Bus: b})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	var mu sync.Mutex
	var got []busruntime.BusMessage
	if err := b.Subscribe(busruntime.TopicChatMessage, func(ctx context.Context, msg busruntime.BusMessage) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	accepted, err := adapter.HandleInboundMessage(context.Background(), sampleInbound())
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if !accepted {
		t.Fatalf("message not accepted")
	}
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("delivery count mismatch: got %d want 1", len(got))
	}
	msg := got[0]
	if msg.ConversationKey != "tg:42" {
		t.Fatalf("conversation key mismatch: got %q", msg.ConversationKey)
	}
	if msg.IdempotencyKey != "msg:telegram:42:7" {
		t.Fatalf("idempotency key mismatch: got %q", msg.IdempotencyKey)
	}

	inbound, err := InboundMessageFromBusMessage(msg)
	if err != nil {
		t.Fatalf("from bus message: %v", err)
	}
	want := sampleInbound()
	if inbound != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", inbound, want)
	}
}

func TestHandleInboundMessageDropsRedelivery(t *testing.T) {
	t.Parallel()

	b := newTestBus(t)
	adapter, err := NewInboundAdapter(InboundAdapterOptions{Bus: b})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	accepted, err := adapter.HandleInboundMessage(context.Background(), sampleInbound())
	if err != nil || !accepted {
		t.Fatalf("first delivery mismatch: accepted=%v err=%v", accepted, err)
	}
	accepted, err = adapter.HandleInboundMessage(context.Background(), sampleInbound())
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if accepted {
		t.Fatalf("redelivery was not dropped")
	}
}

func TestHandleInboundMessageEditNotDroppedAsRedelivery(t *testing.T) {
	t.Parallel()

	b := newTestBus(t)
	adapter, err := NewInboundAdapter(InboundAdapterOptions{Bus: b})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	keys := make(chan string, 2)
	if err := b.Subscribe(busruntime.TopicChatMessage, func(ctx context.Context, msg busruntime.BusMessage) error {
		keys <- msg.IdempotencyKey
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	accepted, err := adapter.HandleInboundMessage(context.Background(), sampleInbound())
	if err != nil || !accepted {
		t.Fatalf("original delivery mismatch: accepted=%v err=%v", accepted, err)
	}

	edited := sampleInbound()
	edited.EditDate = 1756555300
	edited.Text = "write a quine in go"
	accepted, err = adapter.HandleInboundMessage(context.Background(), edited)
	if err != nil {
		t.Fatalf("edited delivery: %v", err)
	}
	if !accepted {
		t.Fatalf("edited message dropped as redelivery of the original")
	}
	b.Close()

	if key := <-keys; key != "msg:telegram:42:7" {
		t.Fatalf("original key mismatch: got %q", key)
	}
	if key := <-keys; key != "msg:telegram:42:7:edit:1756555300" {
		t.Fatalf("edit key mismatch: got %q", key)
	}
}

func TestHandleInboundMessageRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	b := newTestBus(t)
	adapter, err := NewInboundAdapter(InboundAdapterOptions{Bus: b})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*InboundMessage)
	}{
		{"missing chat id", func(m *InboundMessage) { m.ChatID = 0 }},
		{"missing message id", func(m *InboundMessage) { m.MessageID = 0 }},
		{"blank text", func(m *InboundMessage) { m.Text = "   " }},
		{"missing chat type", func(m *InboundMessage) { m.ChatType = "" }},
		{"negative reply to", func(m *InboundMessage) { m.ReplyToMessageID = -1 }},
		{"negative edit date", func(m *InboundMessage) { m.EditDate = -1 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			msg := sampleInbound()
			tc.mutate(&msg)
			if _, err := adapter.HandleInboundMessage(context.Background(), msg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDeliverSendsReplyText(t *testing.T) {
	t.Parallel()

	b := newTestBus(t)
	adapter, err := NewInboundAdapter(InboundAdapterOptions{Bus: b})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	inboundCh := make(chan busruntime.BusMessage, 1)
	if err := b.Subscribe(busruntime.TopicChatMessage, func(ctx context.Context, msg busruntime.BusMessage) error {
		inboundCh <- msg
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := adapter.HandleInboundMessage(context.Background(), sampleInbound()); err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	var inbound busruntime.BusMessage
	select {
	case inbound = <-inboundCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for inbound")
	}

	reply, err := NewOutboundReply(inbound, "here you go", time.Date(2026, 8, 30, 12, 0, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("new outbound reply: %v", err)
	}
	if reply.CorrelationID != inbound.CorrelationID {
		t.Fatalf("correlation id mismatch: got %q want %q", reply.CorrelationID, inbound.CorrelationID)
	}

	type sent struct {
		chatID int64
		text   string
		opts   SendTextOptions
	}
	var calls []sent
	delivery, err := NewDeliveryAdapter(DeliveryAdapterOptions{
		SendText: func(ctx context.Context, chatID int64, text string, opts SendTextOptions) error {
			calls = append(calls, sent{chatID, text, opts})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new delivery adapter: %v", err)
	}
	if err := delivery.Deliver(context.Background(), reply); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("send count mismatch: got %d want 1", len(calls))
	}
	if calls[0].chatID != 42 {
		t.Fatalf("chat id mismatch: got %d", calls[0].chatID)
	}
	if calls[0].text != "here you go" {
		t.Fatalf("text mismatch: got %q", calls[0].text)
	}
	if calls[0].opts.ReplyToMessageID != 7 {
		t.Fatalf("reply to mismatch: got %d", calls[0].opts.ReplyToMessageID)
	}
}

func TestDeliverRejectsInboundMessage(t *testing.T) {
	t.Parallel()

	delivery, err := NewDeliveryAdapter(DeliveryAdapterOptions{
		SendText: func(ctx context.Context, chatID int64, text string, opts SendTextOptions) error {
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new delivery adapter: %v", err)
	}
	msg := busruntime.BusMessage{
		Direction: busruntime.DirectionInbound,
		Channel:   busruntime.ChannelTelegram,
	}
	if err := delivery.Deliver(context.Background(), msg); err == nil {
		t.Fatalf("expected error for inbound direction")
	}
}
