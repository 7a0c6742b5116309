package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
	"github.com/quailyquaily/auditdesk/llm"
	"github.com/quailyquaily/auditdesk/settings"
)

const DefaultTTL = 7 * 24 * time.Hour

// Messenger is the slice of the chat client the orchestrator drives.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegramapi.SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
	CreateGroup(ctx context.Context, title string, participantIDs []int64) (telegramapi.GroupResult, error)
}

type Options struct {
	Store     Store
	Messenger Messenger
	Settings  settings.Source
	// Assist polishes the manual group introduction. Optional.
	Assist llm.TextGenerator
	Sink   *debuglog.Sink
	Logger *slog.Logger
	TTL    time.Duration
	Now    func() time.Time
	NewID  func() string
}

type Orchestrator struct {
	store    Store
	msg      Messenger
	settings settings.Source
	assist   llm.TextGenerator
	sink     *debuglog.Sink
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("missing approval store")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("missing messenger")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("missing settings source")
	}
	o := &Orchestrator{
		store:    opts.Store,
		msg:      opts.Messenger,
		settings: opts.Settings,
		assist:   opts.Assist,
		sink:     opts.Sink,
		logger:   opts.Logger,
		ttl:      opts.TTL,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if o.assist == nil {
		o.assist = llm.Nop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

const maxIDAttempts = 3

// Submit records a pending request and notifies the admin and the requester.
// The request exists only if the admin notification went out.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (Request, error) {
	snap := o.settings.Current()
	if !snap.AdminConfigured() {
		return Request{}, ErrAdminNotConfigured
	}
	sub = sub.normalized()
	if sub.ProjectName == "" {
		return Request{}, ErrMissingProjectName
	}

	now := o.now().UTC()
	req := Request{
		ProjectName:       sub.ProjectName,
		ContractAddress:   sub.ContractAddress,
		Website:           sub.Website,
		Socials:           sub.Socials,
		Description:       sub.Description,
		RequesterChatID:   sub.RequesterChatID,
		RequesterUserID:   sub.RequesterUserID,
		RequesterUsername: sub.RequesterUsername,
		RequesterName:     sub.RequesterName,
		CreatedAt:         now,
		ExpiresAt:         now.Add(o.ttl),
	}
	var err error
	for i := 0; i < maxIDAttempts; i++ {
		req.ID = o.newID()
		if err = o.store.Create(ctx, req); !errors.Is(err, ErrDuplicateID) {
			break
		}
		o.logger.Warn("approval_id_collision", "id", req.ID)
	}
	if err != nil {
		return Request{}, fmt.Errorf("store pending request: %w", err)
	}

	buttons := [][]telegramapi.Button{{
		{Text: "Accept", CallbackData: CallbackData(ActionAccept, req.ID)},
		{Text: "Decline", CallbackData: CallbackData(ActionDecline, req.ID)},
	}}
	if err := o.msg.SendMessage(ctx, snap.AdminChatID, adminSummary(req), telegramapi.SendOptions{
		DisablePreview: true,
		Buttons:        buttons,
	}); err != nil {
		if rmErr := o.store.Remove(ctx, req.ID); rmErr != nil {
			o.logger.Error("approval_rollback_failed", "id", req.ID, "error", rmErr.Error())
		}
		o.sink.Log("approval_submit_failed", map[string]any{"id": req.ID, "error": err.Error()})
		return Request{}, fmt.Errorf("notify admin: %w", err)
	}
	o.logger.Info("approval_submitted", "id", req.ID, "requester_chat_id", req.RequesterChatID, "project", req.ProjectName)
	o.sink.Log("approval_submitted", map[string]any{"id": req.ID, "requester_chat_id": req.RequesterChatID})

	if err := o.msg.SendMessage(ctx, req.RequesterChatID, submittedText(req), telegramapi.SendOptions{}); err != nil {
		o.logger.Warn("approval_requester_notify_failed", "id", req.ID, "error", err.Error())
	}

	o.arrangeGroup(ctx, snap, &req)
	return req, nil
}

// arrangeGroup tries automatic group creation when enabled and falls back to
// manual instructions. Nothing here fails the submission.
func (o *Orchestrator) arrangeGroup(ctx context.Context, snap settings.Snapshot, req *Request) {
	if snap.AutoGroupEnabled {
		participants := []int64{req.RequesterChatID, snap.AdminChatID}
		if req.RequesterUserID != 0 {
			participants[0] = req.RequesterUserID
		}
		res, err := o.msg.CreateGroup(ctx, groupTitle(*req), participants)
		switch {
		case err != nil:
			o.logger.Warn("approval_group_failed", "id", req.ID, "error", err.Error())
			o.sink.Log("approval_group", map[string]any{"id": req.ID, "status": "error", "error": err.Error()})
		case res.Status == telegramapi.GroupCreated && res.Group.InviteLink != "":
			req.GroupInviteLink = res.Group.InviteLink
			if err := o.store.SetInviteLink(ctx, req.ID, res.Group.InviteLink); err != nil {
				o.logger.Warn("approval_store_invite_failed", "id", req.ID, "error", err.Error())
			}
			o.sink.Log("approval_group", map[string]any{"id": req.ID, "status": string(res.Status), "chat_id": res.Group.ChatID})
			text := groupInviteText(*req, res.Group.InviteLink)
			for _, chatID := range []int64{req.RequesterChatID, snap.AdminChatID} {
				if err := o.msg.SendMessage(ctx, chatID, text, telegramapi.SendOptions{}); err != nil {
					o.logger.Warn("approval_group_invite_notify_failed", "id", req.ID, "chat_id", chatID, "error", err.Error())
				}
			}
			return
		default:
			o.sink.Log("approval_group", map[string]any{"id": req.ID, "status": string(res.Status), "reason": res.Reason})
		}
	}

	intro := introductionText(*req)
	if snap.AIRepliesEnabled {
		if polished, ok := o.assist.GenerateText(ctx, introductionPrompt(intro), llm.Options{Temperature: 0.4, MaxTokens: 256}); ok && llm.Usable(polished) {
			intro = strings.TrimSpace(polished)
		}
	}
	botMention := ""
	if snap.BotUsername != "" {
		botMention = "@" + snap.BotUsername
	}
	if err := o.msg.SendMessage(ctx, req.RequesterChatID, manualGroupText(snap.AdminMention(), botMention, intro), telegramapi.SendOptions{DisablePreview: true}); err != nil {
		o.logger.Warn("approval_manual_group_notify_failed", "id", req.ID, "error", err.Error())
	}
}

// HandleCallback resolves a pending request from an inline button press.
// Protocol confusion (unknown action, unknown or already handled id) is
// answered with a warning in the admin chat, not an error.
func (o *Orchestrator) HandleCallback(ctx context.Context, cb Callback) error {
	if err := o.msg.AnswerCallback(ctx, cb.ID, ""); err != nil {
		o.logger.Warn("approval_answer_callback_failed", "callback_id", cb.ID, "error", err.Error())
	}
	snap := o.settings.Current()
	warnChat := snap.AdminChatID
	if warnChat == 0 {
		warnChat = cb.ChatID
	}

	action, id, ok := ParseCallbackData(cb.Data)
	if !ok || (action != ActionAccept && action != ActionDecline) {
		o.logger.Warn("approval_unknown_action", "data", cb.Data)
		return o.msg.SendMessage(ctx, warnChat, fmt.Sprintf("Unknown action %q.", strings.TrimSpace(cb.Data)), telegramapi.SendOptions{})
	}
	if !o.isAdmin(snap, cb) {
		o.logger.Warn("approval_unauthorized", "id", id, "chat_id", cb.ChatID, "user_id", cb.FromUserID)
		return o.msg.SendMessage(ctx, cb.ChatID, "Only the audit desk admin can resolve requests.", telegramapi.SendOptions{})
	}

	req, claimed, err := o.store.Claim(ctx, id, o.now().UTC())
	if err != nil {
		return fmt.Errorf("claim %s: %w", id, err)
	}
	if !claimed {
		o.logger.Warn("approval_already_handled", "id", id, "action", string(action))
		o.sink.Log("approval_duplicate_resolution", map[string]any{"id": id, "action": string(action)})
		return o.msg.SendMessage(ctx, warnChat, fmt.Sprintf("Request %s not found or already handled.", id), telegramapi.SendOptions{})
	}
	defer func() {
		if err := o.store.Remove(ctx, id); err != nil {
			o.logger.Error("approval_remove_failed", "id", id, "error", err.Error())
		}
	}()

	o.logger.Info("approval_resolved", "id", id, "action", string(action), "project", req.ProjectName)
	o.sink.Log("approval_resolved", map[string]any{"id": id, "action": string(action), "requester_chat_id": req.RequesterChatID})

	var errs []error
	if err := o.msg.SendMessage(ctx, warnChat, decisionAdminText(action, req), telegramapi.SendOptions{}); err != nil {
		errs = append(errs, fmt.Errorf("notify admin: %w", err))
	}
	if err := o.msg.SendMessage(ctx, req.RequesterChatID, decisionRequesterText(action, req), telegramapi.SendOptions{}); err != nil {
		errs = append(errs, fmt.Errorf("notify requester: %w", err))
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) isAdmin(snap settings.Snapshot, cb Callback) bool {
	if snap.AdminChatID != 0 && (cb.ChatID == snap.AdminChatID || cb.FromUserID == snap.AdminChatID) {
		return true
	}
	admin := strings.TrimPrefix(snap.AdminMention(), "@")
	user := strings.TrimPrefix(strings.TrimSpace(cb.FromUsername), "@")
	return admin != "" && strings.EqualFold(admin, user)
}

// IsAdminChat reports whether chatID is the configured admin chat.
func (o *Orchestrator) IsAdminChat(chatID int64) bool {
	snap := o.settings.Current()
	return snap.AdminConfigured() && chatID == snap.AdminChatID
}

// Expire drops pending requests whose deadline has passed and tells both
// parties. Notification failures are logged only.
func (o *Orchestrator) Expire(ctx context.Context, now time.Time) (int, error) {
	list, err := o.store.List(ctx)
	if err != nil {
		return 0, err
	}
	snap := o.settings.Current()
	n := 0
	for _, r := range list {
		if !r.Expired(now) {
			continue
		}
		req, claimed, err := o.store.Claim(ctx, r.ID, now)
		if err != nil {
			return n, err
		}
		if !claimed {
			continue
		}
		if err := o.store.Remove(ctx, req.ID); err != nil {
			return n, err
		}
		n++
		o.logger.Info("approval_expired", "id", req.ID, "project", req.ProjectName)
		o.sink.Log("approval_expired", map[string]any{"id": req.ID, "requester_chat_id": req.RequesterChatID})
		if err := o.msg.SendMessage(ctx, req.RequesterChatID, expiredRequesterText(req), telegramapi.SendOptions{}); err != nil {
			o.logger.Warn("approval_expire_notify_failed", "id", req.ID, "error", err.Error())
		}
		if snap.AdminConfigured() {
			if err := o.msg.SendMessage(ctx, snap.AdminChatID, expiredAdminText(req, o.ttl), telegramapi.SendOptions{}); err != nil {
				o.logger.Warn("approval_expire_notify_failed", "id", req.ID, "error", err.Error())
			}
		}
	}
	return n, nil
}

func (o *Orchestrator) List(ctx context.Context) ([]Request, error) {
	return o.store.List(ctx)
}

// PendingSummary renders the pending set for the admin /pending command.
func (o *Orchestrator) PendingSummary(ctx context.Context) (string, error) {
	list, err := o.store.List(ctx)
	if err != nil {
		return "", err
	}
	return pendingListText(list, o.now().UTC()), nil
}
