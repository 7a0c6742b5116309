// Package approval runs the requester/admin decision protocol: a submitted
// intake becomes a pending request, the admin resolves it exactly once through
// an inline button, and both parties are told the outcome.
package approval

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAdminNotConfigured = errors.New("approval: admin chat is not configured")
	ErrDuplicateID        = errors.New("approval: request id already exists")
	ErrMissingProjectName = errors.New("approval: missing project name")
)

// ClaimLease bounds how long a claim blocks other resolvers. A claim older
// than this (a crash between Claim and Remove) can be taken again.
const ClaimLease = 5 * time.Minute

type Request struct {
	ID                string    `json:"id"`
	ProjectName       string    `json:"project_name"`
	ContractAddress   string    `json:"contract_address,omitempty"`
	Website           string    `json:"website,omitempty"`
	Socials           string    `json:"socials,omitempty"`
	Description       string    `json:"description,omitempty"`
	RequesterChatID   int64     `json:"requester_chat_id"`
	RequesterUserID   int64     `json:"requester_user_id,omitempty"`
	RequesterUsername string    `json:"requester_username,omitempty"`
	RequesterName     string    `json:"requester_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
	GroupInviteLink   string    `json:"group_invite_link,omitempty"`
	ClaimedAt         time.Time `json:"claimed_at,omitempty"`
}

func (r Request) Claimed(now time.Time) bool {
	return !r.ClaimedAt.IsZero() && now.Sub(r.ClaimedAt) < ClaimLease
}

func (r Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Submission is what the intake flow hands over.
type Submission struct {
	ProjectName       string
	ContractAddress   string
	Website           string
	Socials           string
	Description       string
	RequesterChatID   int64
	RequesterUserID   int64
	RequesterUsername string
	RequesterName     string
}

func (s Submission) normalized() Submission {
	s.ProjectName = strings.TrimSpace(s.ProjectName)
	s.ContractAddress = strings.TrimSpace(s.ContractAddress)
	s.Website = strings.TrimSpace(s.Website)
	s.Socials = strings.TrimSpace(s.Socials)
	s.Description = strings.TrimSpace(s.Description)
	s.RequesterUsername = strings.TrimPrefix(strings.TrimSpace(s.RequesterUsername), "@")
	s.RequesterName = strings.TrimSpace(s.RequesterName)
	return s
}

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// CallbackData renders the opaque button token for an action on id.
func CallbackData(action Action, id string) string {
	return string(action) + "_" + id
}

// ParseCallbackData splits "<action>_<id>" (or "<action>:<id>"). The action is
// returned lowercased and unvalidated.
func ParseCallbackData(data string) (Action, string, bool) {
	data = strings.TrimSpace(data)
	i := strings.IndexAny(data, "_:")
	if i <= 0 || i == len(data)-1 {
		return "", "", false
	}
	return Action(strings.ToLower(data[:i])), strings.TrimSpace(data[i+1:]), true
}

// Callback is an inline button press as seen by the orchestrator.
type Callback struct {
	ID           string
	Data         string
	ChatID       int64
	FromUserID   int64
	FromUsername string
}
