package telegram

import (
	"fmt"
	"log/slog"
	"time"

	busruntime "github.com/level5vta-creator/ejdevassistant-bot/internal/bus"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/chathistory"
	"github.com/level5vta-creator/ejdevassistant-bot/llm"
)

// DefaultSystemPrompt mirrors the assistant persona the bot was trained
// around. Overridable via llm.system_prompt.
const DefaultSystemPrompt = "You are an expert software engineer and coding assistant. " +
	"Answer programming questions directly and professionally. " +
	"Use markdown code blocks for any code. Keep explanations concise."

type Options struct {
	API     *API
	Bus     *busruntime.Inproc
	History *chathistory.Store
	LLM     llm.Client
	Logger  *slog.Logger

	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// TaskTimeout bounds one completion round trip.
	TaskTimeout time.Duration
	// PollTimeout is the getUpdates long-poll window.
	PollTimeout time.Duration
	// MaxConcurrency bounds completions in flight across all chats.
	MaxConcurrency int

	// AllowedChatIDs, when non-empty, restricts the bot to those chats.
	AllowedChatIDs []int64

	HealthListen string

	// Webhook mode is active when WebhookURL is set; otherwise the runtime
	// long-polls.
	WebhookURL    string
	WebhookSecret string
	WebhookListen string
}

func (o *Options) normalize() error {
	if o.API == nil {
		return fmt.Errorf("telegram api is required")
	}
	if o.Bus == nil {
		return fmt.Errorf("bus is required")
	}
	if o.History == nil {
		return fmt.Errorf("history store is required")
	}
	if o.LLM == nil {
		return fmt.Errorf("llm client is required")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.Temperature == 0 {
		o.Temperature = 0.2
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 30 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 30 * time.Second
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 4
	}
	return nil
}
