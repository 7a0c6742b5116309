package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/quailyquaily/auditdesk/approval"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
	"github.com/quailyquaily/auditdesk/llm"
	"github.com/quailyquaily/auditdesk/settings"
)

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegramapi.SendOptions) error
}

type Submitter interface {
	Submit(ctx context.Context, sub approval.Submission) (approval.Request, error)
}

// Admin is the admin-only surface; *approval.Orchestrator satisfies it.
type Admin interface {
	IsAdminChat(chatID int64) bool
	PendingSummary(ctx context.Context) (string, error)
}

type Reloader interface {
	Reload(ctx context.Context) settings.Snapshot
}

type Options struct {
	Store     *Store
	Messenger Messenger
	Submitter Submitter
	Admin     Admin
	Settings  settings.Source
	// Reloader is optional; without it /reload answers with help text.
	Reloader Reloader
	Assist   llm.TextGenerator
	Logger   *slog.Logger
	Now      func() time.Time
}

type Machine struct {
	store    *Store
	msg      Messenger
	submit   Submitter
	admin    Admin
	settings settings.Source
	reloader Reloader
	assist   llm.TextGenerator
	logger   *slog.Logger
	now      func() time.Time
}

func New(opts Options) (*Machine, error) {
	if opts.Messenger == nil {
		return nil, fmt.Errorf("missing messenger")
	}
	if opts.Submitter == nil {
		return nil, fmt.Errorf("missing submitter")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("missing settings source")
	}
	m := &Machine{
		store:    opts.Store,
		msg:      opts.Messenger,
		submit:   opts.Submitter,
		admin:    opts.Admin,
		settings: opts.Settings,
		reloader: opts.Reloader,
		assist:   opts.Assist,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if m.store == nil {
		m.store = NewStore(DefaultTTL)
	}
	if m.assist == nil {
		m.assist = llm.Nop{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Incoming is one text message from a chat.
type Incoming struct {
	ChatID      int64
	UserID      int64
	Username    string
	DisplayName string
	Text        string
}

// Handle advances the chat's state for one message. Calls for the same chat
// must not overlap. Messaging failures are returned; the stored state is
// written before any reply is sent.
func (m *Machine) Handle(ctx context.Context, in Incoming) error {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil
	}
	snap := m.settings.Current()
	if cmd, arg, ok := parseCommand(text); ok {
		if target := commandTarget(text); target != "" && snap.BotUsername != "" && !strings.EqualFold(target, snap.BotUsername) {
			return nil
		}
		return m.handleCommand(ctx, snap, in, cmd, arg)
	}

	now := m.now()
	if st, ok := m.store.Get(in.ChatID, now); ok && (st.Step == StepCollecting || st.Step == StepReady) {
		return m.handleIntake(ctx, st, text, now)
	}
	return m.handleFreeText(ctx, snap, in.ChatID, text)
}

// Sweep drops idle conversation records.
func (m *Machine) Sweep(now time.Time) int {
	return m.store.Sweep(now)
}

func (m *Machine) handleCommand(ctx context.Context, snap settings.Snapshot, in Incoming, cmd, arg string) error {
	now := m.now()
	switch cmd {
	case "start":
		if _, ok := m.store.Get(in.ChatID, now); !ok {
			m.store.Put(State{ChatID: in.ChatID, Step: StepNew, Info: map[string]string{}, StartedAt: now, UpdatedAt: now})
		}
		return m.reply(ctx, in.ChatID, greetingText)
	case "help":
		return m.reply(ctx, in.ChatID, m.helpFor(in.ChatID))
	case "request":
		st := State{ChatID: in.ChatID, Step: StepCollecting, Info: map[string]string{}, StartedAt: now, UpdatedAt: now}
		if arg != "" {
			st.Info[FieldProjectName] = arg
		}
		m.store.Put(st)
		m.logger.Info("conversation_request_started", "chat_id", in.ChatID)
		return m.reply(ctx, in.ChatID, requestStartedText(arg))
	case "contact":
		return m.handleContact(ctx, in, now)
	case "status":
		st, ok := m.store.Get(in.ChatID, now)
		if !ok {
			return m.reply(ctx, in.ChatID, noDraftText)
		}
		return m.reply(ctx, in.ChatID, statusText(st))
	case "cancel":
		if _, ok := m.store.Get(in.ChatID, now); !ok {
			return m.reply(ctx, in.ChatID, nothingToCancelText)
		}
		m.store.Delete(in.ChatID)
		return m.reply(ctx, in.ChatID, cancelledText)
	case "pending":
		if !m.isAdminChat(in.ChatID) {
			break
		}
		summary, err := m.admin.PendingSummary(ctx)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		return m.reply(ctx, in.ChatID, summary)
	case "reload":
		if !m.isAdminChat(in.ChatID) || m.reloader == nil {
			break
		}
		m.reloader.Reload(ctx)
		m.logger.Info("settings_reloaded", "chat_id", in.ChatID)
		return m.reply(ctx, in.ChatID, reloadedText)
	}
	return m.reply(ctx, in.ChatID, m.helpFor(in.ChatID))
}

func (m *Machine) handleContact(ctx context.Context, in Incoming, now time.Time) error {
	st, ok := m.store.Get(in.ChatID, now)
	if !ok || st.Step == StepNew {
		return m.reply(ctx, in.ChatID, noDraftText)
	}
	if strings.TrimSpace(st.Info[FieldProjectName]) == "" {
		st.Step = StepCollecting
		st.UpdatedAt = now
		m.store.Put(st)
		return m.reply(ctx, in.ChatID, missingProjectText)
	}

	st.Step = StepReady
	st.UpdatedAt = now
	m.store.Put(st)

	_, err := m.submit.Submit(ctx, approval.Submission{
		ProjectName:       st.Info[FieldProjectName],
		ContractAddress:   st.Info[FieldContract],
		Website:           st.Info[FieldWebsite],
		Socials:           st.Info[FieldSocials],
		Description:       st.Info[FieldDescription],
		RequesterChatID:   in.ChatID,
		RequesterUserID:   in.UserID,
		RequesterUsername: in.Username,
		RequesterName:     in.DisplayName,
	})
	if errors.Is(err, approval.ErrAdminNotConfigured) {
		m.logger.Warn("conversation_submit_unavailable", "chat_id", in.ChatID)
		return m.reply(ctx, in.ChatID, adminUnavailableText)
	}
	if err != nil {
		return fmt.Errorf("submit request: %w", err)
	}

	// SUBMITTED is terminal: the record goes so the chat can start over.
	m.store.Delete(in.ChatID)
	m.logger.Info("conversation_submitted", "chat_id", in.ChatID)
	return nil
}

func (m *Machine) handleIntake(ctx context.Context, st State, text string, now time.Time) error {
	if st.Info == nil {
		st.Info = map[string]string{}
	}
	applyIntake(st.Info, text)
	st.Step = StepCollecting
	st.UpdatedAt = now
	m.store.Put(st)
	hasProject := strings.TrimSpace(st.Info[FieldProjectName]) != ""
	return m.reply(ctx, st.ChatID, collectedText(summarize(st.Info), hasProject))
}

func (m *Machine) handleFreeText(ctx context.Context, snap settings.Snapshot, chatID int64, text string) error {
	if !snap.AIRepliesEnabled {
		return m.reply(ctx, chatID, m.helpFor(chatID))
	}
	answer, ok := m.assist.GenerateText(ctx, assistPrompt(text), llm.Options{Temperature: 0.3, MaxTokens: 320})
	if !ok || !llm.Usable(answer) || parrotsInput(answer, text) {
		return m.reply(ctx, chatID, DefaultReplyText)
	}
	suffix := strings.TrimSpace(snap.AIReplySuffix)
	reply := strings.TrimSpace(answer)
	if suffix != "" {
		reply += "\n\n" + suffix
	}
	return m.reply(ctx, chatID, reply)
}

// minParrotRunes keeps short messages ("hi", "price?") from disqualifying
// answers that naturally repeat them.
const minParrotRunes = 12

// parrotsInput reports an answer that opens by repeating a substantial user
// message back. The assist adapter already rejects echoes of the full prompt.
func parrotsInput(answer, text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if utf8.RuneCountInString(text) < minParrotRunes {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), text)
}

func (m *Machine) helpFor(chatID int64) string {
	if m.isAdminChat(chatID) {
		return helpText + adminHelpText
	}
	return helpText
}

func (m *Machine) isAdminChat(chatID int64) bool {
	return m.admin != nil && m.admin.IsAdminChat(chatID)
}

func (m *Machine) reply(ctx context.Context, chatID int64, text string) error {
	return m.msg.SendMessage(ctx, chatID, text, telegramapi.SendOptions{DisablePreview: true})
}

// parseCommand splits "/cmd@bot arg" into a lowercased command and its
// argument text.
func parseCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if nl := strings.IndexByte(head, '\n'); nl >= 0 {
		rest = head[nl+1:] + " " + rest
		head = head[:nl]
	}
	cmd, _, _ := strings.Cut(head, "@")
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	if cmd == "" {
		return "", "", false
	}
	return cmd, strings.TrimSpace(rest), true
}

func commandTarget(text string) string {
	head, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	head, _, _ = strings.Cut(head, "\n")
	_, target, _ := strings.Cut(head, "@")
	return strings.TrimSpace(target)
}
