package bus

const (
	// TopicChatMessage carries inbound user messages.
	TopicChatMessage = "chat.message"
	// TopicChatReply carries outbound bot replies.
	TopicChatReply = "chat.reply"
)

func AllTopics() []string {
	return []string{TopicChatMessage, TopicChatReply}
}
