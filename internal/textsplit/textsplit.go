// Package textsplit splits outbound replies into transport-sized chunks.
package textsplit

import "strings"

// TelegramMaxMessageLen is the Bot API sendMessage text limit.
const TelegramMaxMessageLen = 4096

// Split cuts text into chunks of at most maxLen bytes, preferring to break at
// the last newline inside each window. When a window holds no newline the cut
// is exact at maxLen. Leading whitespace of each remainder is dropped, so
// joining the chunks reproduces the input modulo one whitespace run per
// boundary. Input already within maxLen comes back as a single chunk.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = TelegramMaxMessageLen
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > maxLen {
		window := remaining[:maxLen]
		cut := strings.LastIndex(window, "\n")
		if cut <= 0 {
			cut = maxLen
		}
		chunks = append(chunks, remaining[:cut])
		remaining = strings.TrimLeft(remaining[cut:], " \t\n\r")
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}
