package telegramapi

import "strings"

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// DisplayName prefers the real name and falls back to "@username".
func DisplayName(u *User) string {
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

// Button is one inline action. CallbackData is echoed back verbatim in the
// callback_query when pressed (Telegram caps it at 64 bytes).
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

const ParseModeMarkdownV2 = "MarkdownV2"

type SendOptions struct {
	// ParseMode is "" for plain text or ParseModeMarkdownV2.
	ParseMode      string
	DisablePreview bool
	// Buttons is laid out row by row.
	Buttons [][]Button
}

type GroupStatus string

const (
	GroupCreated     GroupStatus = "created"
	GroupUnsupported GroupStatus = "unsupported"
)

type Group struct {
	ChatID     int64  `json:"chat_id"`
	InviteLink string `json:"invite_link,omitempty"`
}

// GroupResult is the outcome of a best-effort group creation. Unsupported is
// an expected answer, not an error.
type GroupResult struct {
	Status GroupStatus
	Group  Group
	Reason string
}

// EscapeMarkdownV2 escapes every character MarkdownV2 treats as markup.
func EscapeMarkdownV2(text string) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		switch r {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
