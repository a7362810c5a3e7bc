// Package discord implements the Discord channel for relaybot using discordgo.
//
// Features:
//   - Receive text from guild channels and direct messages
//   - Mention token resolution for the bot user
//   - Typing indicators
//   - Guild and channel allowlists
//   - Replies split at Discord's 2000 character limit
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// AllowedGuilds restricts which guild (server) IDs the bot responds in.
	// Empty means respond in all guilds.
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedChannels restricts which channel IDs the bot responds in.
	// Empty means respond in all channels.
	AllowedChannels []string `yaml:"allowed_channels"`

	// IgnoreBots drops messages authored by other bots.
	IgnoreBots bool `yaml:"ignore_bots"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{IgnoreBots: true}
}

// Discord implements channels.Channel and channels.PresenceChannel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// messages is the channel for incoming messages forwarded to the pipeline.
	messages chan *channels.IncomingMessage

	// botID is the bot's own user ID, resolved on connect.
	botID string

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	mu sync.RWMutex
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// ---------- Channel Interface ----------

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	// Message content is a privileged intent and must be enabled for the bot.
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.mu.Lock()
	d.session = session
	if session.State != nil && session.State.User != nil {
		d.botID = session.State.User.ID
	}
	botID := d.botID
	d.mu.Unlock()

	d.connected.Store(true)
	if botID == "" {
		// Group messages cannot be matched without the bot identity.
		d.logger.Error("discord: bot identity unresolved, group mentions will be ignored")
	}
	d.logger.Info("discord: connected", "id", botID)
	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()

	if session != nil {
		session.Close()
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// Send sends a text message to the specified channel. Replies longer than
// Discord's limit are split; only the first chunk references the original.
func (d *Discord) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()
	if session == nil {
		return channels.ErrChannelDisconnected
	}

	for i, chunk := range channels.SplitMessage(message.Content, maxMessageLen) {
		msgSend := &discordgo.MessageSend{Content: chunk}
		if i == 0 && message.ReplyTo != "" {
			msgSend.Reference = &discordgo.MessageReference{MessageID: message.ReplyTo, ChannelID: to}
		}
		if _, err := session.ChannelMessageSendComplex(to, msgSend, discordgo.WithContext(ctx)); err != nil {
			d.errorCount.Add(1)
			return fmt.Errorf("%w: discord: %w", channels.ErrSendFailed, err)
		}
	}
	return nil
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

// ---------- PresenceChannel Interface ----------

// SendTyping sends a typing indicator to the channel.
func (d *Discord) SendTyping(ctx context.Context, to string) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()
	if session == nil {
		return nil
	}
	return session.ChannelTyping(to, discordgo.WithContext(ctx))
}

// ---------- Event Handlers ----------

// onMessageCreate handles incoming Discord messages.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}

	d.mu.RLock()
	botID := d.botID
	d.mu.RUnlock()

	if d.cfg.IgnoreBots && m.Author.Bot && m.Author.ID != botID {
		return
	}
	if !d.allowed(m.GuildID, m.ChannelID) {
		return
	}

	incoming := toIncoming(m.Message, botID)
	if incoming.IsSelf {
		return
	}
	if incoming.Kind == channels.KindGroup && s != nil && s.State != nil {
		if ch, err := s.State.Channel(m.ChannelID); err == nil && ch != nil {
			incoming.ChatName = ch.Name
		}
	}

	d.lastMsg.Store(time.Now())

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// allowed applies the guild and channel allowlists. Direct messages are only
// subject to the channel allowlist.
func (d *Discord) allowed(guildID, channelID string) bool {
	if len(d.cfg.AllowedGuilds) > 0 && guildID != "" && !slices.Contains(d.cfg.AllowedGuilds, guildID) {
		return false
	}
	if len(d.cfg.AllowedChannels) > 0 && !slices.Contains(d.cfg.AllowedChannels, channelID) {
		return false
	}
	return true
}

// ---------- Helpers ----------

// toIncoming converts a Discord message into the platform-neutral form.
func toIncoming(m *discordgo.Message, botID string) *channels.IncomingMessage {
	kind := channels.KindGroup
	if m.GuildID == "" {
		kind = channels.KindDirect
	}

	incoming := &channels.IncomingMessage{
		ID:           m.ID,
		Channel:      "discord",
		ChatID:       m.ChannelID,
		Kind:         kind,
		Content:      m.Content,
		MentionToken: mentionToken(m.Content, botID),
		Timestamp:    m.Timestamp,
	}
	if m.Author != nil {
		incoming.From = m.Author.ID
		incoming.FromName = m.Author.Username
		incoming.IsSelf = botID != "" && m.Author.ID == botID
	}
	return incoming
}

// mentionToken returns the literal form used to address the bot. Discord
// renders user mentions as <@id>, or <@!id> for nickname mentions.
func mentionToken(content, botID string) string {
	if botID == "" {
		return ""
	}
	if nick := "<@!" + botID + ">"; strings.Contains(content, nick) {
		return nick
	}
	return "<@" + botID + ">"
}

// Compile-time interface verification.
var (
	_ channels.Channel         = (*Discord)(nil)
	_ channels.PresenceChannel = (*Discord)(nil)
)
