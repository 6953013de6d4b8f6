package telegram

import "strings"

// Extraction is the outcome of mention gating for one message.
type Extraction struct {
	// Addressed is true when the message is directed at the bot: any message
	// in a private chat, a group message mentioning @bot, or a reply to the
	// bot's own message.
	Addressed bool
	// Prompt is the message text with the bot mention removed. May be empty
	// even when Addressed is true (bare "@bot" with nothing after it).
	Prompt string
}

// ExtractPrompt decides whether msg addresses the bot and strips the mention
// from the prompt text. Entity offsets are UTF-16 code units per the Bot API,
// so spans are resolved through sliceByUTF16 rather than byte indexes.
func ExtractPrompt(msg *Message, botUsername string, botID int64) Extraction {
	text, entities := messageTextOrCaption(msg)
	text = strings.TrimRight(text, " \t\r\n")
	if msg == nil || strings.TrimSpace(text) == "" {
		return Extraction{}
	}

	if msg.Chat.IsPrivate() {
		return Extraction{Addressed: true, Prompt: strings.TrimSpace(text)}
	}

	mention := "@" + strings.TrimSpace(botUsername)
	for _, ent := range entities {
		if ent.Type != "mention" {
			continue
		}
		span := sliceByUTF16(text, ent.Offset, ent.Length)
		if !strings.EqualFold(span, mention) {
			continue
		}
		start := utf16OffsetToByteIndex(text, ent.Offset)
		end := utf16OffsetToByteIndex(text, ent.Offset+ent.Length)
		rest := text[:start] + strings.TrimLeft(text[end:], " \t\r\n")
		return Extraction{Addressed: true, Prompt: strings.TrimSpace(rest)}
	}

	// text_mention entities carry the user directly (accounts without a
	// public @username cannot occur for bots, but clients may still emit it).
	for _, ent := range entities {
		if ent.Type == "text_mention" && ent.User != nil && botID != 0 && ent.User.ID == botID {
			start := utf16OffsetToByteIndex(text, ent.Offset)
			end := utf16OffsetToByteIndex(text, ent.Offset+ent.Length)
			rest := text[:start] + strings.TrimLeft(text[end:], " \t\r\n")
			return Extraction{Addressed: true, Prompt: strings.TrimSpace(rest)}
		}
	}

	if msg.ReplyTo != nil && msg.ReplyTo.From != nil && botID != 0 && msg.ReplyTo.From.ID == botID {
		return Extraction{Addressed: true, Prompt: strings.TrimSpace(text)}
	}

	return Extraction{}
}
