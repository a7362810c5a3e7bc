// Package channels defines the interfaces and types for relaybot messaging
// platforms. Each platform (Discord, Telegram) implements the Channel
// interface to receive and send messages in a unified way.
package channels

import (
	"context"
	"errors"
	"time"
)

// ConversationKind distinguishes one-to-one chats from group chats.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Channel defines the interface that every messaging platform must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord", "telegram").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a message to the specified conversation.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// PresenceChannel extends Channel with typing indicators.
type PresenceChannel interface {
	Channel

	// SendTyping sends a "typing..." indicator to the conversation.
	SendTyping(ctx context.Context, to string) error
}

// IncomingMessage represents a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel (e.g. "discord").
	Channel string

	// ChatID is the conversation identifier replies are sent to.
	ChatID string

	// ChatName is a human readable conversation label, used for audit.
	ChatName string

	// Kind tells whether the message arrived in a direct or group chat.
	Kind ConversationKind

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name (if available).
	FromName string

	// Content is the raw text content of the message.
	Content string

	// MentionToken is the literal token that addresses the bot in this
	// platform (e.g. "<@1234>" on Discord, "@mybot" on Telegram).
	// Empty when the bot identity could not be resolved.
	MentionToken string

	// IsSelf is set when the message was authored by the bot itself.
	IsSelf bool

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// IsDirect reports whether the message came from a one-to-one chat.
func (m *IncomingMessage) IsDirect() bool { return m.Kind == KindDirect }

// OutgoingMessage represents a message to be sent through a channel.
type OutgoingMessage struct {
	// Content is the text content of the message, relayed verbatim.
	Content string

	// ReplyTo contains the ID of the message to reply to.
	ReplyTo string
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
}

// Errors.
var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrChannelNotFound     = errors.New("channel not found")
	ErrSendFailed          = errors.New("failed to send message")
)
