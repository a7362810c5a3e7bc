package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

func TestToIncoming(t *testing.T) {
	tests := []struct {
		name      string
		msg       *telego.Message
		wantKind  channels.ConversationKind
		wantName  string
		wantSelf  bool
		wantText  string
		wantChat  string
		wantMsgID string
	}{
		{
			name: "private chat",
			msg: &telego.Message{
				MessageID: 10,
				Chat:      telego.Chat{ID: 100, Type: telego.ChatTypePrivate},
				From:      &telego.User{ID: 100, FirstName: "Bob", LastName: "Smith"},
				Text:      "hello",
				Date:      1760875200,
			},
			wantKind:  channels.KindDirect,
			wantName:  "Bob Smith",
			wantText:  "hello",
			wantChat:  "100",
			wantMsgID: "10",
		},
		{
			name: "supergroup",
			msg: &telego.Message{
				MessageID: 11,
				Chat:      telego.Chat{ID: -100123, Type: telego.ChatTypeSupergroup, Title: "Builders"},
				From:      &telego.User{ID: 7, Username: "alice"},
				Text:      "@ava_bot hi",
			},
			wantKind:  channels.KindGroup,
			wantName:  "alice",
			wantText:  "@ava_bot hi",
			wantChat:  "-100123",
			wantMsgID: "11",
		},
		{
			name: "caption only",
			msg: &telego.Message{
				MessageID: 12,
				Chat:      telego.Chat{ID: 100, Type: telego.ChatTypePrivate},
				From:      &telego.User{ID: 100, FirstName: "Bob"},
				Caption:   "look at this",
			},
			wantKind:  channels.KindDirect,
			wantName:  "Bob",
			wantText:  "look at this",
			wantChat:  "100",
			wantMsgID: "12",
		},
		{
			name: "own message",
			msg: &telego.Message{
				MessageID: 13,
				Chat:      telego.Chat{ID: -1, Type: telego.ChatTypeGroup},
				From:      &telego.User{ID: 555, IsBot: true, Username: "ava_bot"},
				Text:      "reply",
			},
			wantKind:  channels.KindGroup,
			wantName:  "ava_bot",
			wantSelf:  true,
			wantText:  "reply",
			wantChat:  "-1",
			wantMsgID: "13",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toIncoming(tt.msg, "ava_bot", 555)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.FromName != tt.wantName {
				t.Errorf("FromName = %q, want %q", got.FromName, tt.wantName)
			}
			if got.IsSelf != tt.wantSelf {
				t.Errorf("IsSelf = %v, want %v", got.IsSelf, tt.wantSelf)
			}
			if got.Content != tt.wantText {
				t.Errorf("Content = %q, want %q", got.Content, tt.wantText)
			}
			if got.ChatID != tt.wantChat || got.ID != tt.wantMsgID {
				t.Errorf("ChatID/ID = %q/%q", got.ChatID, got.ID)
			}
			if got.MentionToken != "@ava_bot" {
				t.Errorf("MentionToken = %q", got.MentionToken)
			}
		})
	}
}

func TestToIncomingUnresolvedIdentity(t *testing.T) {
	msg := &telego.Message{Chat: telego.Chat{ID: -1, Type: telego.ChatTypeGroup}, Text: "@ava_bot hi"}
	got := toIncoming(msg, "", 0)
	if got.MentionToken != "" {
		t.Errorf("MentionToken = %q, want empty", got.MentionToken)
	}
	if got.IsSelf {
		t.Error("IsSelf must be false without a bot ID")
	}
}

func TestAllowed(t *testing.T) {
	tg := New(Config{AllowedChats: []int64{100, -5}, RespondToDMs: true}, nil)
	tests := []struct {
		chat telego.Chat
		want bool
	}{
		{telego.Chat{ID: 100, Type: telego.ChatTypePrivate}, true},
		{telego.Chat{ID: 101, Type: telego.ChatTypePrivate}, false},
		{telego.Chat{ID: -5, Type: telego.ChatTypeGroup}, false},
	}
	for _, tt := range tests {
		if got := tg.allowed(tt.chat); got != tt.want {
			t.Errorf("allowed(%d) = %v, want %v", tt.chat.ID, got, tt.want)
		}
	}
}

func TestProcessMessageForwards(t *testing.T) {
	tg := New(DefaultConfig(), nil)
	tg.username, tg.botID = "ava_bot", 555

	tg.processMessage(&telego.Message{
		MessageID: 1,
		Chat:      telego.Chat{ID: 100, Type: telego.ChatTypePrivate},
		From:      &telego.User{ID: 100, FirstName: "Bob"},
		Text:      "hello",
	})
	tg.processMessage(&telego.Message{
		MessageID: 2,
		Chat:      telego.Chat{ID: 100, Type: telego.ChatTypePrivate},
		From:      &telego.User{ID: 100, FirstName: "Bob"},
	})

	select {
	case msg := <-tg.Receive():
		if msg.ID != "1" || !msg.IsDirect() {
			t.Errorf("unexpected message %+v", msg)
		}
	default:
		t.Fatal("expected a forwarded message")
	}
	select {
	case msg := <-tg.Receive():
		t.Errorf("empty messages must be dropped, got %+v", msg)
	default:
	}
}

func TestSendDisconnected(t *testing.T) {
	tg := New(DefaultConfig(), nil)
	err := tg.Send(context.Background(), "100", &channels.OutgoingMessage{Content: "hi"})
	if !errors.Is(err, channels.ErrChannelDisconnected) {
		t.Errorf("Send() error = %v, want ErrChannelDisconnected", err)
	}
	if err := tg.Connect(context.Background()); err == nil {
		t.Error("Connect without token should fail")
	}
	if err := tg.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
}
