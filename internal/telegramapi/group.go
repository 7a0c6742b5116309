package telegramapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type groupBridgeRequest struct {
	Title          string  `json:"title"`
	ParticipantIDs []int64 `json:"participant_ids"`
}

type groupBridgeResponse struct {
	OK          bool   `json:"ok"`
	ChatID      int64  `json:"chat_id"`
	InviteLink  string `json:"invite_link"`
	Description string `json:"description"`
}

// CreateGroup asks for a group chat with the given participants. The Bot API
// has no group creation call, so without a configured bridge (a user-account
// service that can create groups) the answer is GroupUnsupported and no
// request is made.
func (c *Client) CreateGroup(ctx context.Context, title string, participantIDs []int64) (GroupResult, error) {
	bridge := strings.TrimSpace(c.bridgeURL())
	if bridge == "" {
		return GroupResult{Status: GroupUnsupported, Reason: "bot accounts cannot create groups"}, nil
	}
	b, err := json.Marshal(groupBridgeRequest{Title: strings.TrimSpace(title), ParticipantIDs: participantIDs})
	if err != nil {
		return GroupResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bridge, bytes.NewReader(b))
	if err != nil {
		return GroupResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return GroupResult{}, fmt.Errorf("group bridge: %w", err)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotImplemented || resp.StatusCode == http.StatusNotFound:
		return GroupResult{Status: GroupUnsupported, Reason: fmt.Sprintf("bridge http %d", resp.StatusCode)}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return GroupResult{}, fmt.Errorf("group bridge http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out groupBridgeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return GroupResult{}, fmt.Errorf("group bridge: decode: %w", err)
	}
	if !out.OK || out.ChatID == 0 {
		return GroupResult{Status: GroupUnsupported, Reason: strings.TrimSpace(out.Description)}, nil
	}
	return GroupResult{
		Status: GroupCreated,
		Group:  Group{ChatID: out.ChatID, InviteLink: strings.TrimSpace(out.InviteLink)},
	}, nil
}
