package trigger

import (
	"testing"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

func TestShouldRespondDirect(t *testing.T) {
	p := NewPolicy(nil)
	for _, text := range []string{"", "hello", "@someoneelse hi", "   ", "<@999> ping"} {
		msg := &channels.IncomingMessage{Kind: channels.KindDirect, Content: text}
		if !p.ShouldRespond(msg) {
			t.Errorf("direct message %q should always trigger", text)
		}
	}
}

func TestShouldRespondGroup(t *testing.T) {
	p := NewPolicy(nil)
	tests := []struct {
		name    string
		content string
		token   string
		want    bool
	}{
		{"exact mention", "hey @ava what's up", "@ava", true},
		{"upper case mention", "hey @AVA what's up", "@ava", true},
		{"mixed case token", "hi @ava", "@Ava", true},
		{"discord id mention", "<@1234> tell me more", "<@1234>", true},
		{"no mention", "hey everyone", "@ava", false},
		{"other user", "hey @bob", "@ava", false},
		{"token with regexp chars", "ping @bot.v2 now", "@bot.v2", true},
		{"dot is literal", "ping @botxv2 now", "@bot.v2", false},
		{"empty text", "", "@ava", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &channels.IncomingMessage{Kind: channels.KindGroup, Content: tt.content, MentionToken: tt.token}
			if got := p.ShouldRespond(msg); got != tt.want {
				t.Errorf("ShouldRespond(%q, %q) = %v, want %v", tt.content, tt.token, got, tt.want)
			}
		})
	}
}

func TestShouldRespondUnresolvedIdentity(t *testing.T) {
	p := NewPolicy(nil)
	msg := &channels.IncomingMessage{Kind: channels.KindGroup, Content: "hey @ava"}
	if p.ShouldRespond(msg) {
		t.Error("group message without a resolvable bot identity must not trigger")
	}
	if p.ShouldRespond(nil) {
		t.Error("nil message must not trigger")
	}
}

func TestNormalize(t *testing.T) {
	p := NewPolicy(nil)
	tests := []struct {
		name string
		msg  channels.IncomingMessage
		want string
	}{
		{
			name: "group mention removed",
			msg:  channels.IncomingMessage{Kind: channels.KindGroup, Content: "hey @ava what's up", MentionToken: "@ava"},
			want: "hey  what's up",
		},
		{
			name: "leading mention trimmed",
			msg:  channels.IncomingMessage{Kind: channels.KindGroup, Content: "<@42> summarize this ", MentionToken: "<@42>"},
			want: "summarize this",
		},
		{
			name: "only first occurrence removed",
			msg:  channels.IncomingMessage{Kind: channels.KindGroup, Content: "@AVA ask @ava", MentionToken: "@ava"},
			want: "ask @ava",
		},
		{
			name: "direct message unchanged",
			msg:  channels.IncomingMessage{Kind: channels.KindDirect, Content: "  hello @ava  ", MentionToken: "@ava"},
			want: "  hello @ava  ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Normalize(&tt.msg); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	p := NewPolicy(nil)
	inputs := []string{"hey @ava what's up", "@ava", "  @ava  hello  ", "no mention here"}
	for _, in := range inputs {
		msg := &channels.IncomingMessage{Kind: channels.KindGroup, Content: in, MentionToken: "@ava"}
		once := p.Normalize(msg)
		msg.Content = once
		twice := p.Normalize(msg)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestScenarioGroupMention(t *testing.T) {
	p := NewPolicy(nil)
	msg := &channels.IncomingMessage{Kind: channels.KindGroup, Content: "hey @ava what's up", MentionToken: "@ava"}
	if !p.ShouldRespond(msg) {
		t.Fatal("expected trigger")
	}
	if got := p.Normalize(msg); got != "hey  what's up" {
		t.Errorf("Normalize() = %q", got)
	}
}
