package telegram

import "strings"

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
	// Some clients @mention by editing an existing message.
	EditedMessage *Message       `json:"edited_message,omitempty"`
	ChannelPost   *Message       `json:"channel_post,omitempty"`
	Callback      *CallbackQuery `json:"callback_query,omitempty"`
}

// IncomingMessage returns whichever message variant the update carries.
func (u Update) IncomingMessage() *Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	default:
		return nil
	}
}

type Message struct {
	MessageID int64    `json:"message_id"`
	Date      int64    `json:"date,omitempty"`
	EditDate  int64    `json:"edit_date,omitempty"`
	Chat      *Chat    `json:"chat,omitempty"`
	From      *User    `json:"from,omitempty"`
	ReplyTo   *Message `json:"reply_to_message,omitempty"`
	Entities  []Entity `json:"entities,omitempty"`
	Text      string   `json:"text,omitempty"`
	Caption   string   `json:"caption,omitempty"`
	// Entities inside caption text.
	CaptionEntities []Entity `json:"caption_entities,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

func (c *Chat) IsPrivate() bool {
	return c != nil && c.Type == "private"
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	User   *User  `json:"user,omitempty"` // for text_mention
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

func displayName(u *User) string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	username := strings.TrimSpace(u.Username)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case username != "":
		return "@" + username
	default:
		return ""
	}
}

// messageTextOrCaption prefers text; photo/document captions count as the
// message body for relay purposes.
func messageTextOrCaption(msg *Message) (string, []Entity) {
	if msg == nil {
		return "", nil
	}
	if strings.TrimSpace(msg.Text) != "" {
		return msg.Text, msg.Entities
	}
	if strings.TrimSpace(msg.Caption) != "" {
		return msg.Caption, msg.CaptionEntities
	}
	return "", nil
}

// Telegram entity offsets count UTF-16 code units, not bytes or runes.

func sliceByUTF16(s string, offset, length int) string {
	if offset < 0 {
		offset = 0
	}
	if length <= 0 || s == "" {
		return ""
	}
	start := utf16OffsetToByteIndex(s, offset)
	end := utf16OffsetToByteIndex(s, offset+length)
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start > end {
		return ""
	}
	return s[start:end]
}

func utf16OffsetToByteIndex(s string, offset int) int {
	if offset <= 0 {
		return 0
	}
	utf16Count := 0
	for i, r := range s {
		if utf16Count >= offset {
			return i
		}
		if r <= 0xFFFF {
			utf16Count++
		} else {
			utf16Count += 2
		}
	}
	return len(s)
}
