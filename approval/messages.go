package approval

import (
	"fmt"
	"strings"
	"time"
)

func adminSummary(r Request) string {
	var b strings.Builder
	b.WriteString("New audit request\n\n")
	writeField(&b, "Project", r.ProjectName)
	writeField(&b, "Contract", r.ContractAddress)
	writeField(&b, "Website", r.Website)
	writeField(&b, "Socials", r.Socials)
	writeField(&b, "Description", r.Description)
	writeField(&b, "Requester", requesterLabel(r))
	writeField(&b, "Request ID", r.ID)
	return strings.TrimSpace(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func requesterLabel(r Request) string {
	parts := make([]string, 0, 3)
	if r.RequesterName != "" {
		parts = append(parts, r.RequesterName)
	}
	if r.RequesterUsername != "" {
		parts = append(parts, "@"+r.RequesterUsername)
	}
	parts = append(parts, fmt.Sprintf("(chat %d)", r.RequesterChatID))
	return strings.Join(parts, " ")
}

func submittedText(r Request) string {
	return fmt.Sprintf("Thanks! Your audit request for %s has been sent to the audit desk. We will get back to you here once it has been reviewed.", r.ProjectName)
}

func decisionAdminText(action Action, r Request) string {
	verb := "Accepted"
	if action == ActionDecline {
		verb = "Declined"
	}
	return fmt.Sprintf("%s the audit request for %s (%s).", verb, r.ProjectName, r.ID)
}

func decisionRequesterText(action Action, r Request) string {
	if action == ActionDecline {
		return fmt.Sprintf("Your audit request for %s was declined. You are welcome to send a new /request with more details.", r.ProjectName)
	}
	text := fmt.Sprintf("Good news! Your audit request for %s was accepted. The audit desk will contact you shortly.", r.ProjectName)
	if r.GroupInviteLink != "" {
		text += "\n\nJoin the project group: " + r.GroupInviteLink
	}
	return text
}

func groupInviteText(r Request, link string) string {
	return fmt.Sprintf("A group for %s has been created: %s", r.ProjectName, link)
}

func groupTitle(r Request) string {
	title := "Audit: " + r.ProjectName
	if len([]rune(title)) > 128 {
		title = string([]rune(title)[:128])
	}
	return title
}

// introductionText is the message the requester pastes into a group they
// create by hand.
func introductionText(r Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello! This group is for the smart-contract audit of %s.", r.ProjectName)
	if r.ContractAddress != "" {
		fmt.Fprintf(&b, " Contract: %s.", r.ContractAddress)
	}
	if r.Website != "" {
		fmt.Fprintf(&b, " Website: %s.", r.Website)
	}
	b.WriteString(" We are looking forward to working with the audit desk on scope and timeline.")
	return b.String()
}

func introductionPrompt(intro string) string {
	return "Rewrite the following group introduction so it reads friendly and professional. Keep every fact, answer with the new text only.\n\n" + intro
}

func manualGroupText(adminMention, botMention, intro string) string {
	var who []string
	if adminMention != "" {
		who = append(who, adminMention)
	}
	if botMention != "" {
		who = append(who, botMention)
	}
	add := "the audit desk"
	if len(who) > 0 {
		add = strings.Join(who, " and ")
	}
	return fmt.Sprintf("To speed things up, please create a Telegram group, add %s, and paste this introduction:\n\n%s", add, intro)
}

func expiredRequesterText(r Request) string {
	return fmt.Sprintf("Your audit request for %s expired without a decision. Send /request to start a new one.", r.ProjectName)
}

func expiredAdminText(r Request, ttl time.Duration) string {
	return fmt.Sprintf("Audit request for %s (%s) expired after %s without a decision.", r.ProjectName, r.ID, ttl)
}

func pendingListText(rs []Request, now time.Time) string {
	if len(rs) == 0 {
		return "No pending audit requests."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pending audit requests (%d):\n", len(rs))
	for _, r := range rs {
		age := now.Sub(r.CreatedAt).Truncate(time.Minute)
		fmt.Fprintf(&b, "\n- %s by %s, %s ago\n  id: %s", r.ProjectName, requesterLabel(r), age, r.ID)
	}
	return b.String()
}
