package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"go.uber.org/zap"
)

// StatusMessage keeps one chat message up to date with a session's progress.
type StatusMessage struct {
	chat      Chat
	chatID    int64
	messageID int
	logger    *zap.Logger
}

var _ ports.StatusReporter = (*StatusMessage)(nil)

func (s *StatusMessage) Report(ctx context.Context, update domain.StatusUpdate) {
	s.edit(ctx, renderUpdate(update))
}

func (s *StatusMessage) edit(ctx context.Context, text string) {
	if err := s.chat.Edit(ctx, s.chatID, s.messageID, text); err != nil {
		s.logger.Warn("edit status message", zap.Error(err))
	}
}

// OperatorNotifier messages the operator about sessions nobody is watching,
// such as the ones replayed at startup.
type OperatorNotifier struct {
	chat       Chat
	operatorID int64
	logger     *zap.Logger
}

var _ ports.StatusReporter = (*OperatorNotifier)(nil)

func NewOperatorNotifier(chat Chat, operatorID int64, logger *zap.Logger) *OperatorNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OperatorNotifier{chat: chat, operatorID: operatorID, logger: logger}
}

func (n *OperatorNotifier) Report(ctx context.Context, update domain.StatusUpdate) {
	notable := update.PairingCode != "" ||
		update.State == domain.StateAbandoned ||
		(update.State == domain.StateIdle && update.Reason != nil)
	if !notable {
		return
	}

	if _, err := n.chat.Send(ctx, n.operatorID, renderUpdate(update)); err != nil {
		n.logger.Warn("notify operator", zap.String("identity", string(update.Identity)), zap.Error(err))
	}
}

func renderUpdate(update domain.StatusUpdate) string {
	if update.PairingCode != "" {
		return formatCode(update.Identity, update.PairingCode)
	}
	if update.Err != nil && update.State != domain.StateReconnecting {
		return formatStatus(update.Identity, "❗ "+escapeMarkdown(update.Err.Error()))
	}

	switch update.State {
	case domain.StateConnecting:
		return formatStatus(update.Identity, "🔄 Connecting...")
	case domain.StateAwaitingPairing:
		return formatStatus(update.Identity, "⏳ Waiting for pairing code...")
	case domain.StateOpen:
		return formatStatus(update.Identity, "✅ Connected successfully.")
	case domain.StateReconnecting:
		return formatStatus(update.Identity, fmt.Sprintf("🔁 Reconnecting, attempt %d%s", update.Attempt, reasonSuffix(update)))
	case domain.StateAbandoned:
		return formatStatus(update.Identity, fmt.Sprintf("⛔ Gave up after %d attempts%s", update.Attempt, reasonSuffix(update)))
	case domain.StateIdle:
		if update.Reason != nil {
			return formatStatus(update.Identity, "❌ Session logged out.")
		}
		return formatStatus(update.Identity, "❌ Failed to connect.")
	default:
		return formatStatus(update.Identity, escapeMarkdown(update.State.String()))
	}
}

func reasonSuffix(update domain.StatusUpdate) string {
	switch {
	case update.Err != nil:
		return " (" + escapeMarkdown(update.Err.Error()) + ")"
	case update.Reason != nil:
		return " (" + escapeMarkdown(update.Reason.String()) + ")"
	default:
		return ""
	}
}

func formatStatus(id domain.Identity, status string) string {
	return fmt.Sprintf("*Pairing Status*\nNumber: `%s`\nStatus: %s", id, status)
}

func formatCode(id domain.Identity, code string) string {
	return fmt.Sprintf("*Pairing Code*\nNumber: `%s`\nCode: `%s`", id, code)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
