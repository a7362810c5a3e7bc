// Package pipeline wires trigger detection, prompt assembly, the completion
// call, reply delivery and auditing into a single pass per incoming message.
//
// A pass moves through these states and never loops:
//
//	Received -> Filtered
//	Received -> Triggered -> Prompted -> Completed|Failed -> Replied -> Logged
//
// The pipeline keeps no per-conversation state. The only shared state is the
// persona prompt, which is read-only from the pipeline's point of view.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/relaybot/pkg/relaybot/audit"
	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
	"github.com/jholhewres/relaybot/pkg/relaybot/completion"
	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
)

// Default fallback replies sent when the completion fails.
const (
	DefaultTransportFallback = "Sorry, an error occurred while fetching data from OpenRouter."
	DefaultMalformedFallback = "Sorry, I couldn't process the request properly."
)

// State is the terminal state a message reached.
type State string

const (
	StateFiltered State = "filtered"
	StateLogged   State = "logged"
)

// Outcome describes how one message was handled.
type Outcome struct {
	State State

	// Input is the normalized user text sent to the model.
	Input string

	// Reply is the text sent back to the conversation.
	Reply string

	// Failure is set when the reply is a fallback.
	Failure completion.FailureKind

	// DeliveryErr is the error returned by the channel when sending failed.
	DeliveryErr error
}

// Persona provides the system prompt and the active persona document.
type Persona interface {
	Prompt() string
	Document() *persona.Document
}

// Policy decides whether to answer and extracts the user text.
type Policy interface {
	ShouldRespond(msg *channels.IncomingMessage) bool
	Normalize(msg *channels.IncomingMessage) string
}

// Completer produces a reply for a system prompt and user text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) completion.Result
}

// Sender delivers replies to a conversation on a named channel.
type Sender interface {
	Send(ctx context.Context, channelName, to string, msg *channels.OutgoingMessage) error
}

// TypingSender is implemented by senders that can show a typing indicator.
type TypingSender interface {
	SendTyping(ctx context.Context, channelName, to string) error
}

// Recorder stores audit records.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record)
}

// Config tunes pipeline behavior.
type Config struct {
	// TransportFallback is sent when the endpoint is unreachable, times out or
	// returns a non-2xx status.
	TransportFallback string `yaml:"transport_fallback"`

	// MalformedFallback is sent when the endpoint answers without a reply.
	MalformedFallback string `yaml:"malformed_fallback"`

	// SendTyping shows a typing indicator while waiting for the completion.
	SendTyping bool `yaml:"send_typing"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		TransportFallback: DefaultTransportFallback,
		MalformedFallback: DefaultMalformedFallback,
		SendTyping:        true,
	}
}

// Pipeline processes incoming messages.
type Pipeline struct {
	cfg       Config
	persona   Persona
	policy    Policy
	completer Completer
	sender    Sender
	recorder  Recorder
	logger    *slog.Logger

	wg sync.WaitGroup
}

// New creates a pipeline. All collaborators are required.
func New(cfg Config, p Persona, policy Policy, completer Completer, sender Sender, recorder Recorder, logger *slog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.TransportFallback == "" {
		cfg.TransportFallback = def.TransportFallback
	}
	if cfg.MalformedFallback == "" {
		cfg.MalformedFallback = def.MalformedFallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		persona:   p,
		policy:    policy,
		completer: completer,
		sender:    sender,
		recorder:  recorder,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run handles every message from msgs on its own goroutine until msgs is
// closed or ctx is done, then waits for in-flight messages to finish.
func (p *Pipeline) Run(ctx context.Context, msgs <-chan *channels.IncomingMessage) {
	defer p.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			p.wg.Add(1)
			go func(m *channels.IncomingMessage) {
				defer p.wg.Done()
				p.Handle(ctx, m)
			}(msg)
		}
	}
}

// Handle runs one message through the pipeline. It never panics and never
// returns an error; the outcome is reported for logging and tests.
func (p *Pipeline) Handle(ctx context.Context, msg *channels.IncomingMessage) (out Outcome) {
	// Issued requests run to completion or timeout even during shutdown.
	ctx = context.WithoutCancel(ctx)

	if msg == nil || msg.IsSelf {
		return Outcome{State: StateFiltered}
	}
	if !p.policy.ShouldRespond(msg) {
		return Outcome{State: StateFiltered}
	}

	logger := p.logger.With(
		"trace_id", uuid.New().String()[:8],
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"from", msg.From,
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			out = Outcome{State: StateFiltered}
		}
	}()

	input := p.policy.Normalize(msg)
	out.Input = input
	start := time.Now()

	if greeting, ok := p.greetingFor(msg, input); ok {
		out.Reply = greeting
	} else {
		p.showTyping(ctx, msg, logger)
		res := p.completer.Complete(ctx, p.persona.Prompt(), input)
		out.Reply, out.Failure = p.replyFor(res)
	}

	if err := p.sender.Send(ctx, msg.Channel, msg.ChatID, &channels.OutgoingMessage{
		Content: out.Reply,
		ReplyTo: msg.ID,
	}); err != nil {
		out.DeliveryErr = err
		logger.Error("failed to deliver reply", "error", err)
	}

	p.recorder.Record(ctx, audit.Record{
		Channel:          msg.Channel,
		ConversationID:   msg.ChatID,
		ConversationName: msg.ChatName,
		ConversationKind: msg.Kind,
		SenderID:         msg.From,
		SenderName:       msg.FromName,
		Input:            input,
		Output:           out.Reply,
	})

	out.State = StateLogged
	logger.Info("message handled",
		"duration_ms", time.Since(start).Milliseconds(),
		"fallback", string(out.Failure),
		"delivered", out.DeliveryErr == nil,
	)
	return out
}

// replyFor maps a completion result to the text sent to the user.
func (p *Pipeline) replyFor(res completion.Result) (string, completion.FailureKind) {
	switch res.Failure {
	case "":
		return res.Text, ""
	case completion.FailureMalformed:
		return p.cfg.MalformedFallback, res.Failure
	default:
		return p.cfg.TransportFallback, res.Failure
	}
}

// greetingFor answers a direct "/start" with the persona greeting, if any.
func (p *Pipeline) greetingFor(msg *channels.IncomingMessage, input string) (string, bool) {
	if msg.Kind != channels.KindDirect || !isStartCommand(input) {
		return "", false
	}
	doc := p.persona.Document()
	if doc == nil || doc.Greeting == "" {
		return "", false
	}
	return doc.Greeting, true
}

func isStartCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd == "/start"
}

func (p *Pipeline) showTyping(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	if !p.cfg.SendTyping {
		return
	}
	ts, ok := p.sender.(TypingSender)
	if !ok {
		return
	}
	if err := ts.SendTyping(ctx, msg.Channel, msg.ChatID); err != nil {
		logger.Debug("typing indicator failed", "error", err)
	}
}
