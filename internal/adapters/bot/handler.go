package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/relayd/internal/application"
	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"go.uber.org/zap"
)

const (
	CommandPairing     = "pairing"
	CommandListPairing = "listpairing"
	CommandDelPairing  = "delpairing"
	CommandHelp        = "help"
	CommandStart       = "start"
)

// Chat is the messaging surface the operator talks through.
type Chat interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

type Sessions interface {
	Start(id domain.Identity, reporter ports.StatusReporter) error
	Stop(ctx context.Context, id domain.Identity) error
	States() []domain.SessionStatus
}

type Command struct {
	ChatID   int64
	SenderID int64
	Name     string
	Args     []string
}

// Handler executes operator commands. Everyone except the operator is
// turned away before any session state is read.
type Handler struct {
	sessions   Sessions
	chat       Chat
	operatorID int64
	// audit also receives every update of a bot-started pairing.
	audit  ports.StatusReporter
	logger *zap.Logger
}

func NewHandler(sessions Sessions, chat Chat, operatorID int64, audit ports.StatusReporter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{sessions: sessions, chat: chat, operatorID: operatorID, audit: audit, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, cmd Command) error {
	name := strings.ToLower(cmd.Name)
	switch name {
	case CommandPairing, CommandListPairing, CommandDelPairing, CommandHelp, CommandStart:
	default:
		return nil
	}

	if cmd.SenderID != h.operatorID {
		h.logger.Warn("rejected command", zap.String("command", name), zap.Int64("sender", cmd.SenderID))
		return h.reply(ctx, cmd, "❌ You don't have access.")
	}

	switch name {
	case CommandPairing:
		return h.pairing(ctx, cmd)
	case CommandListPairing:
		return h.listPairing(ctx, cmd)
	case CommandDelPairing:
		return h.delPairing(ctx, cmd)
	default:
		return h.reply(ctx, cmd, helpText)
	}
}

const helpText = "*Commands*\n" +
	"/pairing <number> - pair a new sender\n" +
	"/listpairing - list senders\n" +
	"/delpairing <number> - remove a sender"

func (h *Handler) pairing(ctx context.Context, cmd Command) error {
	if len(cmd.Args) < 1 {
		return h.reply(ctx, cmd, "Use: `/pairing <number>`")
	}

	id, err := domain.NormalizeIdentity(cmd.Args[0])
	if err != nil {
		return h.reply(ctx, cmd, fmt.Sprintf("❌ Invalid number %s", escapeMarkdown(cmd.Args[0])))
	}

	messageID, err := h.chat.Send(ctx, cmd.ChatID, fmt.Sprintf("⏳ Pairing with number *%s*...", id))
	if err != nil {
		return fmt.Errorf("send pairing status: %w", err)
	}

	status := &StatusMessage{chat: h.chat, chatID: cmd.ChatID, messageID: messageID, logger: h.logger}
	if err := h.sessions.Start(id, application.Reporters{status, h.audit}); err != nil {
		h.logger.Info("pairing rejected", zap.String("identity", string(id)), zap.Error(err))
		status.edit(ctx, formatStatus(id, "❗ "+escapeMarkdown(startErrorText(err))))
	}

	return nil
}

func (h *Handler) listPairing(ctx context.Context, cmd Command) error {
	states := h.sessions.States()
	if len(states) == 0 {
		return h.reply(ctx, cmd, "No active sender.")
	}

	lines := make([]string, 0, len(states)+1)
	lines = append(lines, "*Active Sender List:*")
	for _, status := range states {
		line := fmt.Sprintf("• %s (%s)", status.Identity, escapeMarkdown(status.State.String()))
		if status.Attempt > 0 {
			line += fmt.Sprintf(" attempt %d", status.Attempt)
		}
		lines = append(lines, line)
	}

	return h.reply(ctx, cmd, strings.Join(lines, "\n"))
}

func (h *Handler) delPairing(ctx context.Context, cmd Command) error {
	if len(cmd.Args) < 1 {
		return h.reply(ctx, cmd, "Use: /delpairing 628xxxx")
	}

	id, err := domain.NormalizeIdentity(cmd.Args[0])
	if err != nil {
		return h.reply(ctx, cmd, "Sender not found.")
	}

	if err := h.sessions.Stop(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return h.reply(ctx, cmd, "Sender not found.")
		}
		h.logger.Error("delete sender", zap.String("identity", string(id)), zap.Error(err))
		return h.reply(ctx, cmd, "Failed to delete sender.")
	}

	return h.reply(ctx, cmd, fmt.Sprintf("Sender %s successfully deleted.", id))
}

func (h *Handler) reply(ctx context.Context, cmd Command, text string) error {
	if _, err := h.chat.Send(ctx, cmd.ChatID, text); err != nil {
		return fmt.Errorf("reply to %s: %w", cmd.Name, err)
	}
	return nil
}

func startErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrPairingInProgress):
		return "Pairing already in progress."
	case errors.Is(err, domain.ErrSessionExists):
		return "Already connected."
	case errors.Is(err, domain.ErrSupervisorClosed):
		return "Service is shutting down."
	default:
		return err.Error()
	}
}
