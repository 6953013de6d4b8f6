package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	busruntime "github.com/level5vta-creator/ejdevassistant-bot/internal/bus"
)

type SendTextOptions struct {
	ReplyToMessageID int64
}

type SendTextFunc func(ctx context.Context, chatID int64, text string, opts SendTextOptions) error

type DeliveryAdapterOptions struct {
	SendText SendTextFunc
}

// DeliveryAdapter turns outbound bus messages into Telegram sends.
type DeliveryAdapter struct {
	sendText SendTextFunc
}

func NewDeliveryAdapter(opts DeliveryAdapterOptions) (*DeliveryAdapter, error) {
	if opts.SendText == nil {
		return nil, fmt.Errorf("send text func is required")
	}
	return &DeliveryAdapter{sendText: opts.SendText}, nil
}

func (a *DeliveryAdapter) Deliver(ctx context.Context, msg busruntime.BusMessage) error {
	if a == nil || a.sendText == nil {
		return fmt.Errorf("telegram delivery adapter is not initialized")
	}
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	if msg.Direction != busruntime.DirectionOutbound {
		return fmt.Errorf("direction must be outbound")
	}
	if msg.Channel != busruntime.ChannelTelegram {
		return fmt.Errorf("channel must be telegram")
	}
	chatID, err := busruntime.ParseTelegramChatConversationKey(msg.ConversationKey)
	if err != nil {
		return err
	}
	env, err := msg.Envelope()
	if err != nil {
		return err
	}
	text := strings.TrimSpace(env.Text)
	if text == "" {
		return fmt.Errorf("text is required")
	}
	replyToMessageID, err := parseOptionalReplyToMessageID(msg.Extensions.ReplyTo)
	if err != nil {
		return err
	}
	return a.sendText(ctx, chatID, text, SendTextOptions{ReplyToMessageID: replyToMessageID})
}

// NewOutboundReply builds the outbound bus message answering inbound. The
// correlation ID is carried over so the reply can be traced to its trigger.
func NewOutboundReply(inbound busruntime.BusMessage, text string, sentAt time.Time) (busruntime.BusMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return busruntime.BusMessage{}, fmt.Errorf("text is required")
	}
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	sentAt = sentAt.UTC()
	payloadBase64, err := busruntime.EncodeMessageEnvelope(busruntime.MessageEnvelope{
		MessageID: "reply:" + inbound.CorrelationID,
		Text:      text,
		SentAt:    sentAt.Format(time.RFC3339),
	})
	if err != nil {
		return busruntime.BusMessage{}, err
	}
	replyTo := ""
	if messageID, err := parseTelegramMessageID(inbound.Extensions.PlatformMessageID); err == nil {
		replyTo = strconv.FormatInt(messageID, 10)
	}
	return busruntime.BusMessage{
		Direction:       busruntime.DirectionOutbound,
		Channel:         busruntime.ChannelTelegram,
		Topic:           busruntime.TopicChatReply,
		ConversationKey: inbound.ConversationKey,
		ParticipantKey:  inbound.ParticipantKey,
		IdempotencyKey:  busruntime.MessageIdempotencyKey("reply:" + inbound.CorrelationID),
		CorrelationID:   inbound.CorrelationID,
		ContentType:     "application/json",
		PayloadBase64:   payloadBase64,
		CreatedAt:       sentAt,
		Extensions: busruntime.MessageExtensions{
			ReplyTo: replyTo,
		},
	}, nil
}
