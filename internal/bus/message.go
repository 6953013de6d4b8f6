// Package bus is the in-process message bus between the Telegram transport
// and the relay pipeline. Inbound updates and outbound replies travel as
// validated BusMessages; duplicate deliveries (webhook retries) are dropped
// on the idempotency key.
package bus

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Channel string

const ChannelTelegram Channel = "telegram"

// MessageExtensions carries transport detail the relay pipeline needs beyond
// the envelope text.
type MessageExtensions struct {
	PlatformMessageID string `json:"platform_message_id,omitempty"`
	EditDate          int64  `json:"edit_date,omitempty"`
	ReplyTo           string `json:"reply_to,omitempty"`
	ChatType          string `json:"chat_type,omitempty"`
	FromUserID        int64  `json:"from_user_id,omitempty"`
	FromUsername      string `json:"from_username,omitempty"`
	FromDisplayName   string `json:"from_display_name,omitempty"`
	Mentioned         bool   `json:"mentioned,omitempty"`
}

type BusMessage struct {
	ID              string            `json:"id"`
	Direction       Direction         `json:"direction"`
	Channel         Channel           `json:"channel"`
	Topic           string            `json:"topic"`
	ConversationKey string            `json:"conversation_key"`
	ParticipantKey  string            `json:"participant_key,omitempty"`
	IdempotencyKey  string            `json:"idempotency_key"`
	CorrelationID   string            `json:"correlation_id"`
	ContentType     string            `json:"content_type"`
	PayloadBase64   string            `json:"payload_base64"`
	CreatedAt       time.Time         `json:"created_at"`
	Extensions      MessageExtensions `json:"extensions,omitempty"`
}

var topicPattern = regexp.MustCompile(`^[a-z0-9]+(?:\.[a-z0-9_]+)*$`)

func (m BusMessage) Validate() error {
	if err := validateRequiredCanonicalString("id", m.ID); err != nil {
		return err
	}
	switch m.Direction {
	case DirectionInbound, DirectionOutbound:
	default:
		return fmt.Errorf("direction must be inbound|outbound")
	}
	if m.Channel != ChannelTelegram {
		return fmt.Errorf("channel is invalid")
	}
	if err := validateRequiredCanonicalString("topic", m.Topic); err != nil {
		return err
	}
	if !topicPattern.MatchString(m.Topic) {
		return fmt.Errorf("topic is invalid")
	}
	if err := validateRequiredCanonicalString("conversation_key", m.ConversationKey); err != nil {
		return err
	}
	if err := validateRequiredCanonicalString("idempotency_key", m.IdempotencyKey); err != nil {
		return err
	}
	if err := validateRequiredCanonicalString("correlation_id", m.CorrelationID); err != nil {
		return err
	}
	if err := validateRequiredCanonicalString("content_type", m.ContentType); err != nil {
		return err
	}
	if !isJSONContentType(m.ContentType) {
		return fmt.Errorf("content_type must start with application/json")
	}
	if err := validateRequiredCanonicalString("payload_base64", m.PayloadBase64); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if _, err := DecodeMessageEnvelope(m.PayloadBase64); err != nil {
		return err
	}
	return nil
}

func (m BusMessage) Envelope() (MessageEnvelope, error) {
	return DecodeMessageEnvelope(m.PayloadBase64)
}

// MessageIdempotencyKey derives the dedup key for an inbound envelope
// message ID. Webhook retries carry the same platform message and collapse
// onto one key.
func MessageIdempotencyKey(envelopeMessageID string) string {
	return "msg:" + envelopeMessageID
}

func isJSONContentType(contentType string) bool {
	return contentType == "application/json" || strings.HasPrefix(contentType, "application/json;")
}
