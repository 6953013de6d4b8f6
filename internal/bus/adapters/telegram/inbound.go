// Package telegram adapts Telegram chat traffic to and from bus messages.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	busruntime "github.com/level5vta-creator/ejdevassistant-bot/internal/bus"
)

type InboundAdapterOptions struct {
	Bus *busruntime.Inproc
	Now func() time.Time
}

// InboundMessage is a Telegram message after mention extraction, ready to
// enter the relay pipeline.
type InboundMessage struct {
	ChatID           int64
	MessageID        int64
	ReplyToMessageID int64
	// EditDate is non-zero for an edited message; it feeds the idempotency
	// key so an edit is not dropped as a redelivery of the original.
	EditDate        int64
	SentAt          time.Time
	ChatType        string
	FromUserID      int64
	FromUsername    string
	FromDisplayName string
	Mentioned       bool
	Text            string
}

type InboundAdapter struct {
	bus   *busruntime.Inproc
	nowFn func() time.Time
}

func NewInboundAdapter(opts InboundAdapterOptions) (*InboundAdapter, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &InboundAdapter{bus: opts.Bus, nowFn: nowFn}, nil
}

// HandleInboundMessage publishes msg onto the chat.message topic. It reports
// whether the bus accepted the message; webhook redeliveries of the same
// platform message return false with no error.
func (a *InboundAdapter) HandleInboundMessage(ctx context.Context, msg InboundMessage) (bool, error) {
	if a == nil || a.bus == nil {
		return false, fmt.Errorf("telegram inbound adapter is not initialized")
	}
	if ctx == nil {
		return false, fmt.Errorf("context is required")
	}
	if msg.ChatID == 0 {
		return false, fmt.Errorf("chat_id is required")
	}
	if msg.MessageID == 0 {
		return false, fmt.Errorf("message_id is required")
	}
	if msg.ReplyToMessageID < 0 {
		return false, fmt.Errorf("reply_to_message_id is invalid")
	}
	if msg.EditDate < 0 {
		return false, fmt.Errorf("edit_date is invalid")
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return false, fmt.Errorf("text is required")
	}
	chatType := strings.TrimSpace(msg.ChatType)
	if chatType == "" {
		return false, fmt.Errorf("chat_type is required")
	}

	now := a.nowFn().UTC()
	sentAt := msg.SentAt.UTC()
	if sentAt.IsZero() {
		sentAt = now
	}
	envelopeMessageID := fmt.Sprintf("telegram:%d:%d", msg.ChatID, msg.MessageID)
	if msg.EditDate > 0 {
		envelopeMessageID = fmt.Sprintf("%s:edit:%d", envelopeMessageID, msg.EditDate)
	}
	replyTo := ""
	if msg.ReplyToMessageID > 0 {
		replyTo = strconv.FormatInt(msg.ReplyToMessageID, 10)
	}
	payloadBase64, err := busruntime.EncodeMessageEnvelope(busruntime.MessageEnvelope{
		MessageID: envelopeMessageID,
		Text:      text,
		SentAt:    sentAt.Format(time.RFC3339),
		ReplyTo:   replyTo,
	})
	if err != nil {
		return false, err
	}

	participantKey := ""
	if msg.FromUserID != 0 {
		participantKey = strconv.FormatInt(msg.FromUserID, 10)
	}
	busMsg := busruntime.BusMessage{
		ID:              "bus_" + uuid.NewString(),
		Direction:       busruntime.DirectionInbound,
		Channel:         busruntime.ChannelTelegram,
		Topic:           busruntime.TopicChatMessage,
		ConversationKey: busruntime.BuildTelegramChatConversationKey(msg.ChatID),
		ParticipantKey:  participantKey,
		IdempotencyKey:  busruntime.MessageIdempotencyKey(envelopeMessageID),
		CorrelationID:   envelopeMessageID,
		ContentType:     "application/json",
		PayloadBase64:   payloadBase64,
		CreatedAt:       sentAt,
		Extensions: busruntime.MessageExtensions{
			PlatformMessageID: fmt.Sprintf("%d:%d", msg.ChatID, msg.MessageID),
			EditDate:          msg.EditDate,
			ReplyTo:           replyTo,
			ChatType:          chatType,
			FromUserID:        msg.FromUserID,
			FromUsername:      strings.TrimSpace(msg.FromUsername),
			FromDisplayName:   strings.TrimSpace(msg.FromDisplayName),
			Mentioned:         msg.Mentioned,
		},
	}
	accepted, deduped, err := a.bus.Publish(ctx, busMsg)
	if err != nil {
		return false, err
	}
	if deduped {
		return false, nil
	}
	return accepted, nil
}

// InboundMessageFromBusMessage recovers the transport-level message on the
// subscriber side.
func InboundMessageFromBusMessage(msg busruntime.BusMessage) (InboundMessage, error) {
	if msg.Direction != busruntime.DirectionInbound {
		return InboundMessage{}, fmt.Errorf("direction must be inbound")
	}
	if msg.Channel != busruntime.ChannelTelegram {
		return InboundMessage{}, fmt.Errorf("channel must be telegram")
	}
	chatID, err := busruntime.ParseTelegramChatConversationKey(msg.ConversationKey)
	if err != nil {
		return InboundMessage{}, err
	}
	messageID, err := parseTelegramMessageID(msg.Extensions.PlatformMessageID)
	if err != nil {
		return InboundMessage{}, err
	}
	envelope, err := msg.Envelope()
	if err != nil {
		return InboundMessage{}, err
	}
	replyToRaw := strings.TrimSpace(msg.Extensions.ReplyTo)
	if replyToRaw == "" {
		replyToRaw = strings.TrimSpace(envelope.ReplyTo)
	}
	replyToMessageID, err := parseOptionalReplyToMessageID(replyToRaw)
	if err != nil {
		return InboundMessage{}, err
	}
	sentAt, err := time.Parse(time.RFC3339, strings.TrimSpace(envelope.SentAt))
	if err != nil {
		return InboundMessage{}, fmt.Errorf("sent_at is invalid")
	}
	chatType := strings.TrimSpace(msg.Extensions.ChatType)
	if chatType == "" {
		return InboundMessage{}, fmt.Errorf("chat_type is required")
	}

	if msg.Extensions.EditDate < 0 {
		return InboundMessage{}, fmt.Errorf("edit_date is invalid")
	}

	return InboundMessage{
		ChatID:           chatID,
		MessageID:        messageID,
		ReplyToMessageID: replyToMessageID,
		EditDate:         msg.Extensions.EditDate,
		SentAt:           sentAt.UTC(),
		ChatType:         chatType,
		FromUserID:       msg.Extensions.FromUserID,
		FromUsername:     strings.TrimSpace(msg.Extensions.FromUsername),
		FromDisplayName:  strings.TrimSpace(msg.Extensions.FromDisplayName),
		Mentioned:        msg.Extensions.Mentioned,
		Text:             strings.TrimSpace(envelope.Text),
	}, nil
}

func parseTelegramMessageID(platformMessageID string) (int64, error) {
	platformMessageID = strings.TrimSpace(platformMessageID)
	if platformMessageID == "" {
		return 0, fmt.Errorf("platform_message_id is required")
	}
	parts := strings.Split(platformMessageID, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("platform_message_id is invalid")
	}
	messageID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("platform_message_id is invalid: %w", err)
	}
	if messageID == 0 {
		return 0, fmt.Errorf("platform_message_id is invalid")
	}
	return messageID, nil
}

func parseOptionalReplyToMessageID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	replyToMessageID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || replyToMessageID <= 0 {
		return 0, fmt.Errorf("reply_to is invalid")
	}
	return replyToMessageID, nil
}
