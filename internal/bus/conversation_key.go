package bus

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildTelegramChatConversationKey maps a Telegram chat ID to the canonical
// conversation key used on the bus.
func BuildTelegramChatConversationKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// ParseTelegramChatConversationKey recovers the chat ID from a conversation
// key produced by BuildTelegramChatConversationKey.
func ParseTelegramChatConversationKey(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, "tg:")
	if !ok {
		return 0, fmt.Errorf("conversation key %q is not a telegram chat key", key)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("conversation key %q has invalid chat id", key)
	}
	return chatID, nil
}
