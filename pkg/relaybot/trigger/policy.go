// Package trigger decides whether the bot must answer an incoming message and
// extracts the text the user actually addressed to it.
//
// Direct messages always trigger a reply. In group chats the bot only answers
// when it is mentioned; there is no always-on group mode.
package trigger

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

// ErrIdentityUnresolved means a group message arrived before the channel knew
// the bot's own mention token. The message is dropped.
var ErrIdentityUnresolved = errors.New("bot identity could not be resolved")

// Policy implements the reply trigger rules.
type Policy struct {
	logger *slog.Logger
}

// NewPolicy creates a trigger policy.
func NewPolicy(logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{logger: logger.With("component", "trigger")}
}

// ShouldRespond reports whether the bot must reply to msg.
func (p *Policy) ShouldRespond(msg *channels.IncomingMessage) bool {
	if msg == nil {
		return false
	}
	if msg.Kind == channels.KindDirect {
		return true
	}
	if msg.MentionToken == "" {
		p.logger.Error("dropping group message",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"msg_id", msg.ID,
			"error", ErrIdentityUnresolved,
		)
		return false
	}
	return findToken(msg.Content, msg.MentionToken) != nil
}

// Normalize returns the user text with the bot mention removed. Only group
// messages are rewritten: the first case-insensitive occurrence of the mention
// token is stripped and surrounding whitespace trimmed. Direct messages are
// returned unchanged.
func (p *Policy) Normalize(msg *channels.IncomingMessage) string {
	if msg == nil {
		return ""
	}
	if msg.Kind == channels.KindDirect || msg.MentionToken == "" {
		return msg.Content
	}
	loc := findToken(msg.Content, msg.MentionToken)
	if loc == nil {
		return strings.TrimSpace(msg.Content)
	}
	return strings.TrimSpace(msg.Content[:loc[0]] + msg.Content[loc[1]:])
}

// findToken returns the byte range of the first case-insensitive match of
// token in text, or nil.
func findToken(text, token string) []int {
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(token))
	return re.FindStringIndex(text)
}
