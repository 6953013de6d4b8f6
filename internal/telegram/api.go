package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/level5vta-creator/ejdevassistant-bot/internal/textsplit"
)

const DefaultBaseURL = "https://api.telegram.org"

// API is a thin Bot API client. Methods map 1:1 to Bot API calls; only what
// the relay needs is covered.
type API struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewAPI(httpClient *http.Client, baseURL, token string) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &API{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// RequestError is a Bot API call rejected by Telegram.
type RequestError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	desc := strings.TrimSpace(e.Description)
	if desc != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, desc)
		}
		return "telegram: " + desc
	}
	body := strings.TrimSpace(e.Body)
	if e.StatusCode > 0 {
		if body != "" {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, body)
		}
		return fmt.Sprintf("telegram http %d", e.StatusCode)
	}
	if body != "" {
		return "telegram: " + body
	}
	return "telegram request failed"
}

type okResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (api *API) postJSON(ctx context.Context, method string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", api.baseURL, api.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := api.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return &RequestError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   out.ErrorCode,
			Description: out.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	return nil
}

type getMeResponse struct {
	OK     bool `json:"ok"`
	Result User `json:"result"`
}

func (api *API) GetMe(ctx context.Context) (*User, error) {
	url := fmt.Sprintf("%s/bot%s/getMe", api.baseURL, api.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := api.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out getMeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getMe: ok=false")
	}
	return &out.Result, nil
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// GetUpdates long-polls for up to timeout and returns the updates plus the
// next offset to poll from.
func (api *API) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d", api.baseURL, api.token, secs)
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := api.http.Do(req)
	if err != nil {
		return nil, offset, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, offset, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out getUpdatesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// IsPollTimeoutError reports whether err is the expected idle long-poll
// expiry rather than a real transport failure.
func IsPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

type sendMessageRequest struct {
	ChatID                int64        `json:"chat_id"`
	Text                  string       `json:"text"`
	ParseMode             string       `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview,omitempty"`
	ReplyToMessageID      int64        `json:"reply_to_message_id,omitempty"`
	ReplyMarkup           *ReplyMarkup `json:"reply_markup,omitempty"`
}

type sendOptions struct {
	replyToMessageID int64
	replyMarkup      *ReplyMarkup
}

func (api *API) sendMessageWithParseMode(ctx context.Context, chatID int64, text, parseMode string, opts sendOptions) error {
	return api.postJSON(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             strings.TrimSpace(parseMode),
		DisableWebPagePreview: true,
		ReplyToMessageID:      opts.replyToMessageID,
		ReplyMarkup:           opts.replyMarkup,
	})
}

func isMarkdownParseError(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		desc := strings.ToLower(strings.TrimSpace(reqErr.Description))
		if strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity") {
			return true
		}
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't parse entity")
}

// SendMessage sends text as Markdown and falls back to plain text when
// Telegram rejects the formatting. Responses with unbalanced code fences
// would otherwise be lost.
func (api *API) SendMessage(ctx context.Context, chatID int64, text string) error {
	return api.sendMessage(ctx, chatID, text, sendOptions{})
}

func (api *API) sendMessage(ctx context.Context, chatID int64, text string, opts sendOptions) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	err := api.sendMessageWithParseMode(ctx, chatID, text, "Markdown", opts)
	if err == nil {
		return nil
	}
	if isMarkdownParseError(err) {
		slog.Warn("telegram_markdown_rejected", "chat_id", chatID, "error", err.Error())
		return api.sendMessageWithParseMode(ctx, chatID, text, "", opts)
	}
	return err
}

// SendMessageChunked splits text at the transport limit and sends the parts
// in order. Only the first part replies to replyToMessageID.
func (api *API) SendMessageChunked(ctx context.Context, chatID int64, text string, replyToMessageID int64) error {
	chunks := textsplit.Split(text, textsplit.TelegramMaxMessageLen)
	for i, chunk := range chunks {
		opts := sendOptions{}
		if i == 0 {
			opts.replyToMessageID = replyToMessageID
		}
		if err := api.sendMessage(ctx, chatID, chunk, opts); err != nil {
			return err
		}
	}
	return nil
}

// SendMessageWithMarkup sends text with an inline keyboard attached.
func (api *API) SendMessageWithMarkup(ctx context.Context, chatID int64, text string, markup *ReplyMarkup) error {
	return api.sendMessage(ctx, chatID, text, sendOptions{replyMarkup: markup})
}

type sendChatActionRequest struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

func (api *API) SendChatAction(ctx context.Context, chatID int64, action string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "typing"
	}
	return api.postJSON(ctx, "sendChatAction", sendChatActionRequest{ChatID: chatID, Action: action})
}

type answerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

func (api *API) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	return api.postJSON(ctx, "answerCallbackQuery", answerCallbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
}

type editMessageTextRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

func (api *API) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	return api.postJSON(ctx, "editMessageText", editMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

func (api *API) SetWebhook(ctx context.Context, url, secretToken string) error {
	return api.postJSON(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secretToken,
		AllowedUpdates: []string{"message", "edited_message", "callback_query"},
	})
}

type deleteWebhookRequest struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

func (api *API) DeleteWebhook(ctx context.Context) error {
	return api.postJSON(ctx, "deleteWebhook", deleteWebhookRequest{})
}

// StartTypingTicker shows the typing indicator and refreshes it every
// interval until the returned stop func is called. Telegram drops the
// indicator after ~5s, so refreshes keep it visible during slow completions.
func StartTypingTicker(ctx context.Context, api *API, chatID int64, interval time.Duration) func() {
	if ctx == nil {
		ctx = context.Background()
	}
	if api == nil || chatID == 0 {
		return func() {}
	}
	if interval <= 0 {
		interval = 4 * time.Second
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		_ = api.SendChatAction(ctx, chatID, "typing")
		for {
			select {
			case <-ticker.C:
				_ = api.SendChatAction(ctx, chatID, "typing")
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		select {
		case <-done:
		default:
			close(done)
		}
		ticker.Stop()
	}
}
