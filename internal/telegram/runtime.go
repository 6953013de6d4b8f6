package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	busruntime "github.com/level5vta-creator/ejdevassistant-bot/internal/bus"
	busadapter "github.com/level5vta-creator/ejdevassistant-bot/internal/bus/adapters/telegram"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/healthcheck"
	"github.com/level5vta-creator/ejdevassistant-bot/internal/worker"
	"github.com/level5vta-creator/ejdevassistant-bot/llm"
)

const (
	welcomeText = "Hi! I'm your coding assistant. Send me a programming question, " +
		"paste broken code, or pick an option below."
	helpText = "Send me any programming question and I'll answer with code when useful.\n" +
		"In group chats, mention me (@botname) or reply to one of my messages.\n\n" +
		"Commands:\n" +
		"/start - welcome and quick actions\n" +
		"/help - this message\n" +
		"/contact - how to reach the maintainer\n" +
		"/reset - clear your conversation history\n" +
		"/id - show chat and user IDs"
	contactText      = "Questions or feedback? Open an issue on the project repository."
	emptyMentionText = "Please provide a request after mentioning me."
	fallbackText     = "Sorry, something went wrong while handling your request. Please try again."
	resetDoneText    = "Conversation history cleared."
	unauthorizedText = "This bot is not available in this chat."
)

type chatJob struct {
	inbound busadapter.InboundMessage
	busMsg  busruntime.BusMessage
}

type chatWorker struct {
	jobs chan chatJob
}

// Runtime is the relay orchestrator. It moves each inbound message through
// mention extraction, history, the LLM gateway and chunked delivery, with one
// worker goroutine per chat so conversations never block each other.
type Runtime struct {
	opts            Options
	inboundAdapter  *busadapter.InboundAdapter
	deliveryAdapter *busadapter.DeliveryAdapter

	botUsername string
	botID       int64

	sem        chan struct{}
	workersCtx context.Context

	mu      sync.Mutex
	workers map[int64]*chatWorker
}

func NewRuntime(opts Options) (*Runtime, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	inboundAdapter, err := busadapter.NewInboundAdapter(busadapter.InboundAdapterOptions{Bus: opts.Bus})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		opts:           opts,
		inboundAdapter: inboundAdapter,
		sem:            make(chan struct{}, opts.MaxConcurrency),
		workers:        make(map[int64]*chatWorker),
	}
	rt.deliveryAdapter, err = busadapter.NewDeliveryAdapter(busadapter.DeliveryAdapterOptions{
		SendText: func(ctx context.Context, chatID int64, text string, sendOpts busadapter.SendTextOptions) error {
			return opts.API.SendMessageChunked(ctx, chatID, text, sendOpts.ReplyToMessageID)
		},
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// init resolves the bot identity and wires the bus subscriptions. The
// returned stop func cancels the chat workers.
func (rt *Runtime) init(ctx context.Context) (func(), error) {
	me, err := rt.opts.API.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	rt.botUsername = strings.TrimSpace(me.Username)
	rt.botID = me.ID
	rt.opts.Logger.Info("telegram_start", "bot_username", rt.botUsername, "bot_id", rt.botID)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	rt.workersCtx = workersCtx

	if err := rt.opts.Bus.Subscribe(busruntime.TopicChatMessage, rt.handleInboundBusMessage); err != nil {
		stopWorkers()
		return nil, err
	}
	if err := rt.opts.Bus.Subscribe(busruntime.TopicChatReply, func(ctx context.Context, msg busruntime.BusMessage) error {
		return rt.deliveryAdapter.Deliver(ctx, msg)
	}); err != nil {
		stopWorkers()
		return nil, err
	}
	return stopWorkers, nil
}

// Run drives the bot until ctx is cancelled. Webhook mode is chosen when
// Options.WebhookURL is set, long-polling otherwise.
func (rt *Runtime) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stopWorkers, err := rt.init(ctx)
	if err != nil {
		return err
	}
	defer stopWorkers()

	if strings.TrimSpace(rt.opts.WebhookURL) != "" {
		return rt.runWebhook(ctx)
	}
	return rt.runPoll(ctx)
}

func (rt *Runtime) runPoll(ctx context.Context) error {
	logger := rt.opts.Logger

	if err := rt.opts.API.DeleteWebhook(ctx); err != nil {
		logger.Warn("telegram_delete_webhook_error", "error", err.Error())
	}

	healthListen := healthcheck.NormalizeListen(rt.opts.HealthListen)
	if healthListen != "" {
		healthServer, err := healthcheck.StartServer(ctx, logger, healthListen, "telegram")
		if err != nil {
			logger.Warn("telegram_health_server_start_error", "addr", healthListen, "error", err.Error())
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = healthServer.Shutdown(shutdownCtx)
				cancel()
			}()
		}
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			logger.Info("telegram_stop", "reason", "context_canceled")
			return nil
		}
		updates, nextOffset, err := rt.opts.API.GetUpdates(ctx, offset, rt.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if IsPollTimeoutError(err) {
				logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			} else {
				logger.Warn("telegram_get_updates_error", "error", err.Error())
			}
			time.Sleep(1 * time.Second)
			continue
		}
		offset = nextOffset

		for _, u := range updates {
			if err := rt.HandleUpdate(ctx, u); err != nil {
				logger.Warn("telegram_update_error", "update_id", u.UpdateID, "error", err.Error())
			}
		}
	}
}

// HandleUpdate routes one update. Commands, menu callbacks and gating
// rejections are answered inline; real prompts are published to the bus and
// picked up by the chat's worker. The returned error is a bus publish
// failure, which webhook mode surfaces as a 5xx so Telegram redelivers.
func (rt *Runtime) HandleUpdate(ctx context.Context, u Update) error {
	logger := rt.opts.Logger

	if u.Callback != nil {
		rt.handleCallback(ctx, u.Callback)
		return nil
	}

	msg := u.IncomingMessage()
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if msg.From != nil && msg.From.IsBot {
		return nil
	}
	chatID := msg.Chat.ID

	text, _ := messageTextOrCaption(msg)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !rt.chatAllowed(chatID) {
		if strings.HasPrefix(text, "/") {
			rt.sendOrLog(ctx, chatID, unauthorizedText)
		} else {
			logger.Debug("telegram_chat_not_allowed", "chat_id", chatID)
		}
		return nil
	}

	if strings.HasPrefix(text, "/") {
		rt.handleCommand(ctx, msg, text)
		return nil
	}

	extraction := ExtractPrompt(msg, rt.botUsername, rt.botID)
	if !extraction.Addressed {
		logger.Debug("telegram_not_addressed", "chat_id", chatID)
		return nil
	}
	if extraction.Prompt == "" {
		rt.sendOrLog(ctx, chatID, emptyMentionText)
		return nil
	}

	sentAt := time.Unix(msg.Date, 0)
	if msg.Date == 0 {
		sentAt = time.Now()
	}
	inbound := busadapter.InboundMessage{
		ChatID:          chatID,
		MessageID:       msg.MessageID,
		EditDate:        msg.EditDate,
		SentAt:          sentAt,
		ChatType:        strings.ToLower(strings.TrimSpace(msg.Chat.Type)),
		FromDisplayName: displayName(msg.From),
		Mentioned:       !msg.Chat.IsPrivate(),
		Text:            extraction.Prompt,
	}
	if msg.From != nil {
		inbound.FromUserID = msg.From.ID
		inbound.FromUsername = strings.TrimSpace(msg.From.Username)
	}
	if msg.ReplyTo != nil {
		inbound.ReplyToMessageID = msg.ReplyTo.MessageID
	}

	accepted, err := rt.inboundAdapter.HandleInboundMessage(ctx, inbound)
	if err != nil {
		return fmt.Errorf("publish inbound: %w", err)
	}
	if !accepted {
		logger.Info("telegram_update_deduped", "chat_id", chatID, "message_id", msg.MessageID)
	}
	return nil
}

func (rt *Runtime) chatAllowed(chatID int64) bool {
	if len(rt.opts.AllowedChatIDs) == 0 {
		return true
	}
	for _, allowed := range rt.opts.AllowedChatIDs {
		if allowed == chatID {
			return true
		}
	}
	return false
}

func (rt *Runtime) sendOrLog(ctx context.Context, chatID int64, text string) {
	if err := rt.opts.API.SendMessage(ctx, chatID, text); err != nil {
		rt.opts.Logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
	}
}

func (rt *Runtime) handleCommand(ctx context.Context, msg *Message, text string) {
	chatID := msg.Chat.ID
	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	// Group clients append the bot name: "/help@devassistant_bot".
	if at := strings.Index(command, "@"); at > 0 {
		target := command[at+1:]
		if !strings.EqualFold(target, rt.botUsername) {
			return
		}
		command = command[:at]
	}

	switch command {
	case "/start":
		if err := rt.opts.API.SendMessageWithMarkup(ctx, chatID, welcomeText, StartMenu()); err != nil {
			rt.opts.Logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		}
	case "/help":
		rt.sendOrLog(ctx, chatID, helpText)
	case "/contact":
		rt.sendOrLog(ctx, chatID, contactText)
	case "/reset":
		rt.opts.History.Reset(rt.historyKey(msg))
		rt.sendOrLog(ctx, chatID, resetDoneText)
	case "/id":
		userID := int64(0)
		if msg.From != nil {
			userID = msg.From.ID
		}
		rt.sendOrLog(ctx, chatID, fmt.Sprintf("chat id: %d\nuser id: %d", chatID, userID))
	default:
		rt.opts.Logger.Debug("telegram_unknown_command", "chat_id", chatID, "command", command)
	}
}

func (rt *Runtime) handleCallback(ctx context.Context, cb *CallbackQuery) {
	logger := rt.opts.Logger
	action, err := ParseCallbackAction(cb.Data)
	if err != nil {
		logger.Warn("telegram_callback_unknown", "data", cb.Data)
		if ackErr := rt.opts.API.AnswerCallbackQuery(ctx, cb.ID, ""); ackErr != nil {
			logger.Warn("telegram_callback_answer_error", "error", ackErr.Error())
		}
		return
	}
	if err := rt.opts.API.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
		logger.Warn("telegram_callback_answer_error", "error", err.Error())
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	if err := rt.opts.API.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, menuPrompt(action)); err != nil {
		logger.Warn("telegram_callback_edit_error", "error", err.Error())
	}
}

func (rt *Runtime) historyKey(msg *Message) int64 {
	if msg.From != nil && msg.From.ID != 0 {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func (rt *Runtime) handleInboundBusMessage(ctx context.Context, msg busruntime.BusMessage) error {
	inbound, err := busadapter.InboundMessageFromBusMessage(msg)
	if err != nil {
		return err
	}
	w := rt.getOrStartWorker(inbound.ChatID)
	return worker.Enqueue(ctx, rt.workersCtx, w.jobs, chatJob{inbound: inbound, busMsg: msg})
}

func (rt *Runtime) getOrStartWorker(chatID int64) *chatWorker {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if w, ok := rt.workers[chatID]; ok && w != nil {
		return w
	}
	w := &chatWorker{jobs: make(chan chatJob, 16)}
	rt.workers[chatID] = w
	worker.Start(worker.StartOptions[chatJob]{
		Ctx:    rt.workersCtx,
		Sem:    rt.sem,
		Jobs:   w.jobs,
		Logger: rt.opts.Logger,
		Handle: rt.runChatJob,
	})
	return w
}

// runChatJob is one relay round trip: user turn into history, gateway call,
// assistant turn into history, reply onto the bus. Failures stay inside the
// job; the user sees a single fixed fallback line.
func (rt *Runtime) runChatJob(workerCtx context.Context, job chatJob) {
	logger := rt.opts.Logger
	chatID := job.inbound.ChatID
	userID := job.inbound.FromUserID
	if userID == 0 {
		userID = chatID
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("telegram_relay_panic",
				"chat_id", chatID,
				"error", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
			rt.publishReply(workerCtx, job, fallbackText)
		}
	}()

	typingStop := StartTypingTicker(workerCtx, rt.opts.API, chatID, 4*time.Second)
	defer typingStop()

	turns := rt.opts.History.Append(userID, llm.Message{Role: llm.RoleUser, Content: job.inbound.Text})
	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: rt.opts.SystemPrompt})
	messages = append(messages, turns...)

	runCtx, cancel := context.WithTimeout(workerCtx, rt.opts.TaskTimeout)
	result, err := rt.opts.LLM.Chat(runCtx, llm.Request{
		Model:       rt.opts.Model,
		Messages:    messages,
		Temperature: rt.opts.Temperature,
		MaxTokens:   rt.opts.MaxTokens,
	})
	cancel()
	typingStop()

	if err != nil {
		if workerCtx.Err() != nil {
			return
		}
		logger.Warn("llm_request_error",
			"chat_id", chatID,
			"user_id", userID,
			"kind", classifyGatewayError(err),
			"error", err.Error())
		rt.publishReply(workerCtx, job, fallbackText)
		return
	}

	rt.opts.History.Append(userID, llm.Message{Role: llm.RoleAssistant, Content: result.Text})
	logger.Info("llm_request_done",
		"chat_id", chatID,
		"user_id", userID,
		"duration_ms", result.Duration.Milliseconds(),
		"total_tokens", result.Usage.TotalTokens)
	rt.publishReply(workerCtx, job, result.Text)
}

func (rt *Runtime) publishReply(ctx context.Context, job chatJob, text string) {
	reply, err := busadapter.NewOutboundReply(job.busMsg, text, time.Now())
	if err != nil {
		rt.opts.Logger.Warn("telegram_reply_build_error", "chat_id", job.inbound.ChatID, "error", err.Error())
		return
	}
	if _, _, err := rt.opts.Bus.Publish(ctx, reply); err != nil {
		rt.opts.Logger.Warn("telegram_reply_publish_error", "chat_id", job.inbound.ChatID, "error", err.Error())
	}
}

func classifyGatewayError(err error) string {
	var httpErr *llm.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return "http"
	case errors.Is(err, llm.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}
