// Package telegram implements the Telegram channel for relaybot on top of
// the telego Bot API client.
//
// Features:
//   - Long polling for updates
//   - Mention token resolution from the bot username
//   - Typing indicators (sendChatAction)
//   - Group and DM support with a chat allowlist
//   - Replies split at Telegram's 4096 character limit
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

// maxMessageLen is Telegram's per-message character limit.
const maxMessageLen = 4096

// Config holds Telegram channel configuration.
type Config struct {
	// Token is the Telegram Bot API token (from @BotFather).
	Token string `yaml:"token"`

	// AllowedChats restricts which chat IDs the bot responds to.
	// Empty means respond to all chats.
	AllowedChats []int64 `yaml:"allowed_chats"`

	// RespondToGroups enables responding in group chats.
	RespondToGroups bool `yaml:"respond_to_groups"`

	// RespondToDMs enables responding in direct messages.
	RespondToDMs bool `yaml:"respond_to_dms"`

	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int `yaml:"poll_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RespondToGroups: true,
		RespondToDMs:    true,
		PollTimeout:     30,
	}
}

// Telegram implements channels.Channel and channels.PresenceChannel.
type Telegram struct {
	cfg    Config
	logger *slog.Logger
	bot    *telego.Bot

	// username is the bot's @username without the leading "@".
	username string
	botID    int64

	// messages is the channel for incoming messages forwarded to the pipeline.
	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.RWMutex
}

// New creates a new Telegram channel instance.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Telegram{
		cfg:      cfg,
		logger:   logger.With("component", "telegram"),
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// ---------- Channel Interface ----------

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Connect verifies the token and starts the long-polling loop.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token is required")
	}

	// Prevent double-connect goroutine leak.
	if t.connected.Load() {
		return nil
	}

	bot, err := telego.NewBot(t.cfg.Token, telego.WithDiscardLogger())
	if err != nil {
		return fmt.Errorf("telegram: creating bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: failed to verify token: %w", err)
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	updates, err := bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        t.cfg.PollTimeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: starting long polling: %w", err)
	}

	t.mu.Lock()
	t.bot = bot
	t.username = me.Username
	t.botID = me.ID
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	t.connected.Store(true)
	if me.Username == "" {
		t.logger.Error("telegram: bot username unresolved, group mentions will be ignored")
	}
	t.logger.Info("telegram: connected", "bot", me.Username, "id", me.ID)

	go t.pollLoop(updates, done)
	return nil
}

// Disconnect stops the polling loop.
func (t *Telegram) Disconnect() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	t.connected.Store(false)
	t.logger.Info("telegram: disconnected")
	return nil
}

// Send sends a text message to the specified chat.
func (t *Telegram) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	t.mu.RLock()
	bot := t.bot
	t.mu.RUnlock()
	if bot == nil || !t.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", to, err)
	}

	for i, chunk := range channels.SplitMessage(message.Content, maxMessageLen) {
		params := tu.Message(tu.ID(chatID), chunk)
		if i == 0 && message.ReplyTo != "" {
			if msgID, e := strconv.Atoi(message.ReplyTo); e == nil {
				params.ReplyParameters = &telego.ReplyParameters{
					MessageID:                msgID,
					AllowSendingWithoutReply: true,
				}
			}
		}
		if _, err := bot.SendMessage(ctx, params); err != nil {
			t.errorCount.Add(1)
			return fmt.Errorf("%w: telegram: %w", channels.ErrSendFailed, err)
		}
	}
	return nil
}

// Receive returns the incoming messages channel.
func (t *Telegram) Receive() <-chan *channels.IncomingMessage {
	return t.messages
}

// IsConnected returns true if the bot is connected.
func (t *Telegram) IsConnected() bool { return t.connected.Load() }

// Health returns the channel health status.
func (t *Telegram) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := t.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     t.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(t.errorCount.Load()),
	}
}

// ---------- PresenceChannel Interface ----------

// SendTyping sends a "typing..." chat action.
func (t *Telegram) SendTyping(ctx context.Context, to string) error {
	t.mu.RLock()
	bot := t.bot
	t.mu.RUnlock()
	if bot == nil || !t.connected.Load() {
		return nil
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", to, err)
	}
	return bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping))
}

// ---------- Polling ----------

func (t *Telegram) pollLoop(updates <-chan telego.Update, done chan struct{}) {
	defer close(done)
	t.logger.Info("telegram: polling started")
	for u := range updates {
		if u.Message == nil {
			continue
		}
		t.processMessage(u.Message)
	}
	t.logger.Info("telegram: polling stopped")
}

// processMessage filters a Telegram message and forwards it.
func (t *Telegram) processMessage(msg *telego.Message) {
	if !t.allowed(msg.Chat) {
		return
	}

	t.mu.RLock()
	username, botID := t.username, t.botID
	t.mu.RUnlock()

	incoming := toIncoming(msg, username, botID)
	if incoming.IsSelf || incoming.Content == "" {
		return
	}

	t.lastMsg.Store(time.Now())

	select {
	case t.messages <- incoming:
	default:
		t.logger.Warn("telegram: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// allowed applies the chat allowlist and the group/DM switches.
func (t *Telegram) allowed(chat telego.Chat) bool {
	if len(t.cfg.AllowedChats) > 0 && !slices.Contains(t.cfg.AllowedChats, chat.ID) {
		return false
	}
	if chat.Type == telego.ChatTypePrivate {
		return t.cfg.RespondToDMs
	}
	return t.cfg.RespondToGroups
}

// ---------- Helpers ----------

// toIncoming converts a Telegram message into the platform-neutral form.
func toIncoming(msg *telego.Message, username string, botID int64) *channels.IncomingMessage {
	kind := channels.KindGroup
	if msg.Chat.Type == telego.ChatTypePrivate {
		kind = channels.KindDirect
	}

	incoming := &channels.IncomingMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Channel:   "telegram",
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		ChatName:  msg.Chat.Title,
		Kind:      kind,
		Content:   msg.Text,
		Timestamp: time.Unix(msg.Date, 0),
	}
	if incoming.Content == "" {
		incoming.Content = msg.Caption
	}
	if username != "" {
		incoming.MentionToken = "@" + username
	}
	if msg.From != nil {
		incoming.From = strconv.FormatInt(msg.From.ID, 10)
		incoming.FromName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if incoming.FromName == "" {
			incoming.FromName = msg.From.Username
		}
		incoming.IsSelf = botID != 0 && msg.From.ID == botID
	}
	return incoming
}

// Compile-time interface verification.
var (
	_ channels.Channel         = (*Telegram)(nil)
	_ channels.PresenceChannel = (*Telegram)(nil)
)
