// Package telegramapi is a thin client for the Telegram Bot API calls the
// audit desk needs. Every call does network I/O and may fail.
package telegramapi

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
)

const DefaultBaseURL = "https://api.telegram.org"

var ErrMissingToken = errors.New("telegram: missing bot token")

type Client struct {
	http    *http.Client
	baseURL string
	token   func() string
	// bridgeURL returns the group-creation bridge endpoint, or "".
	bridgeURL func() string
	logger    *slog.Logger
}

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	// Token is read on every call so a settings reload takes effect.
	Token          func() string
	GroupBridgeURL func() string
	Logger         *slog.Logger
}

func New(opts Options) *Client {
	c := &Client{
		http:      opts.HTTPClient,
		baseURL:   strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		token:     opts.Token,
		bridgeURL: opts.GroupBridgeURL,
		logger:    opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.token == nil {
		c.token = func() string { return "" }
	}
	if c.bridgeURL == nil {
		c.bridgeURL = func() string { return "" }
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	prefix := "telegram"
	if e.Method != "" {
		prefix = "telegram " + e.Method
	}
	if desc := strings.TrimSpace(e.Description); desc != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("%s: http %d: %s", prefix, e.StatusCode, desc)
		}
		return prefix + ": " + desc
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("%s: http %d: %s", prefix, e.StatusCode, body)
	}
	return fmt.Sprintf("%s: http %d", prefix, e.StatusCode)
}

func IsMarkdownParseError(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	desc := strings.ToLower(reqErr.Description)
	return strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity")
}

func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type okResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// call posts body as JSON to the bot method and decodes "result" into out.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	token := strings.TrimSpace(c.token())
	if token == "" {
		return ErrMissingToken
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", method, err)
		}
		reader = bytes.NewReader(b)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token, so strip it from transport errors.
		return fmt.Errorf("telegram %s: %s", method, strings.ReplaceAll(err.Error(), token, "<token>"))
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()

	var env okResponse
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID                int64                 `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendMessage sends text to chatID. A MarkdownV2 entity parse error is
// retried once as plain text with the markup escapes removed.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	req := sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             strings.TrimSpace(opts.ParseMode),
		DisableWebPagePreview: opts.DisablePreview,
	}
	if len(opts.Buttons) > 0 {
		req.ReplyMarkup = &inlineKeyboardMarkup{InlineKeyboard: opts.Buttons}
	}
	err := c.call(ctx, "sendMessage", req, nil)
	if err == nil || req.ParseMode == "" || !IsMarkdownParseError(err) {
		return err
	}
	c.logger.Warn("telegram_markdown_fallback", "chat_id", chatID, "error", err.Error())
	req.ParseMode = ""
	req.Text = unescapeMarkdownV2(text)
	return c.call(ctx, "sendMessage", req, nil)
}

func unescapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	escaped := false
	for _, r := range text {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// AnswerCallback dismisses the client-side spinner of an inline button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	callbackID = strings.TrimSpace(callbackID)
	if callbackID == "" {
		return fmt.Errorf("missing callback_query_id")
	}
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{
		CallbackQueryID: callbackID,
		Text:            strings.TrimSpace(text),
	}, nil)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// DefaultAllowedUpdates is the update subset the dispatcher understands.
var DefaultAllowedUpdates = []string{"message", "callback_query"}

func (c *Client) SetWebhook(ctx context.Context, url string, secret string, allowedUpdates []string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("missing webhook url")
	}
	if len(allowedUpdates) == 0 {
		allowedUpdates = DefaultAllowedUpdates
	}
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    strings.TrimSpace(secret),
		AllowedUpdates: allowedUpdates,
	}, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for updates and returns the next offset to ask for.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var updates []Update
	err := c.call(reqCtx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: DefaultAllowedUpdates,
	}, &updates)
	if err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}
