package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jholhewres/relaybot/pkg/relaybot/audit"
	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
	"github.com/jholhewres/relaybot/pkg/relaybot/completion"
	"github.com/jholhewres/relaybot/pkg/relaybot/config"
	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
	"github.com/jholhewres/relaybot/pkg/relaybot/pipeline"
	"github.com/jholhewres/relaybot/pkg/relaybot/trigger"
)

// consoleChannel is the channel name used for local conversations.
const consoleChannel = "console"

// newChatCmd creates the `relaybot chat` command for local conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the persona from the terminal",
		Long: `Run messages through the same pipeline the platforms use, with the
terminal as the conversation. Send a single message or, without
arguments, start an interactive session.

Examples:
  relaybot chat "hello there"
  relaybot chat                          # interactive mode
  relaybot chat --group --mention @ava   # behave like a group chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "model to use (overrides api.model)")
	cmd.Flags().Bool("group", false, "treat messages as group messages (mention required)")
	cmd.Flags().String("mention", "@relaybot", "mention token that addresses the bot in --group mode")
	cmd.Flags().Bool("no-audit", false, "do not record the conversation")
	return cmd
}

// consoleSender prints replies to the terminal.
type consoleSender struct {
	out io.Writer
}

func (c consoleSender) Send(_ context.Context, _, _ string, msg *channels.OutgoingMessage) error {
	_, err := fmt.Fprintf(c.out, "\n%s\n\n", msg.Content)
	return err
}

// chatSession is a local conversation bound to a pipeline.
type chatSession struct {
	pipeline *pipeline.Pipeline
	kind     channels.ConversationKind
	mention  string
	user     string
	seq      int
}

func (s *chatSession) send(ctx context.Context, text string) pipeline.Outcome {
	s.seq++
	return s.pipeline.Handle(ctx, &channels.IncomingMessage{
		ID:           strconv.Itoa(s.seq),
		Channel:      consoleChannel,
		ChatID:       consoleChannel,
		ChatName:     "terminal",
		Kind:         s.kind,
		From:         s.user,
		FromName:     s.user,
		Content:      text,
		MentionToken: s.mention,
		Timestamp:    time.Now(),
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.API.Model = model
	}
	logger := stderrLogger(cmd, cfg)

	doc, err := loadPersona(cfg.Persona.Path, logger)
	if err != nil {
		return err
	}
	config.ResolveCredentials(cfg, doc.Credentials, logger)
	if err := config.Validate(cfg, false); err != nil {
		return err
	}

	// The conversation is already on screen.
	auditCfg := cfg.Audit
	auditCfg.Stdout = false
	var recorder pipeline.Recorder = audit.NewLogger(logger)
	if noAudit, _ := cmd.Flags().GetBool("no-audit"); !noAudit {
		auditLog, err := openAudit(auditCfg, logger)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer auditLog.Close()
		recorder = auditLog
	}

	session := &chatSession{kind: channels.KindDirect, user: currentUser()}
	if group, _ := cmd.Flags().GetBool("group"); group {
		session.kind = channels.KindGroup
		session.mention, _ = cmd.Flags().GetString("mention")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) > 0 {
		session.pipeline = pipeline.New(cfg.Replies, persona.NewStore(doc), trigger.NewPolicy(logger),
			completion.NewClient(cfg.API, logger), consoleSender{out: cmd.OutOrStdout()}, recorder, logger)
		if out := session.send(ctx, args[0]); out.State == pipeline.StateFiltered {
			fmt.Fprintln(cmd.ErrOrStderr(), "(message ignored: the bot was not mentioned)")
		}
		return nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting terminal: %w", err)
	}
	defer rl.Close()

	session.pipeline = pipeline.New(cfg.Replies, persona.NewStore(doc), trigger.NewPolicy(logger),
		completion.NewClient(cfg.API, logger), consoleSender{out: rl.Stdout()}, recorder, logger)

	name := doc.Name
	if name == "" {
		name = "the bot"
	}
	fmt.Fprintf(rl.Stdout(), "Talking to %s (model %s). Type /exit or press Ctrl+D to quit.\n\n", name, cfg.API.Model)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		if out := session.send(ctx, line); out.State == pipeline.StateFiltered {
			fmt.Fprintln(rl.Stderr(), "(message ignored: the bot was not mentioned)")
		}
	}
}

// historyFile returns the REPL history path, or "" when no home is known.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".relaybot_history")
}

func currentUser() string {
	for _, v := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(v); u != "" {
			return u
		}
	}
	return "local"
}
