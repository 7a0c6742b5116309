// Package outputfmt scrubs credentials out of error text before it reaches a
// log line, the debug log or a terminal.
package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

var (
	urlInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	// Telegram puts the bot token in the path: /bot123456:ABC-def/sendMessage.
	botPathRE = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Error renders err with credentials removed. Nil yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Text(err.Error())
}

// Text redacts bot tokens and credential-looking query parameters inside any
// URL found in raw. Hosts are kept; they help tell the Bot API from the
// generative API in a log.
func Text(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := urlInTextRE.ReplaceAllStringFunc(raw, redactURL)
	return botPathRE.ReplaceAllString(out, "/bot"+redacted)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.User = nil
	q := u.Query()
	changed := false
	for k := range q {
		if sensitiveKey(k) {
			q.Set(k, redacted)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func sensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("-", "", "_", "").Replace(k)
	if k == "key" {
		return true
	}
	for _, frag := range []string{"apikey", "token", "secret", "password", "authorization"} {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}
