package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"go.uber.org/zap"
)

type SendRequest struct {
	Target string
	Text   string
	// Sender pins the outbound session. Empty picks the first registered one.
	Sender string
}

// DefaultCountryCode is prepended to targets written in national format.
const DefaultCountryCode = "62"

type RelayConfig struct {
	// CountryCode rewrites national-format targets. Empty leaves them as is.
	CountryCode string
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{CountryCode: DefaultCountryCode}
}

// RelayService sends outbound messages through registered sessions. It reads
// the registry directly and never touches the supervisor.
type RelayService struct {
	registry *Registry
	cfg      RelayConfig
	logger   *zap.Logger
}

func NewRelayService(registry *Registry, cfg RelayConfig, logger *zap.Logger) *RelayService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RelayService{registry: registry, cfg: cfg, logger: logger}
}

func (s *RelayService) Send(ctx context.Context, req SendRequest) (domain.SendReceipt, error) {
	target, err := domain.NormalizeTarget(req.Target, s.cfg.CountryCode)
	if err != nil {
		return domain.SendReceipt{}, fmt.Errorf("target: %w", err)
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.SendReceipt{}, domain.ErrEmptyMessage
	}

	if s.registry.IsEmpty() {
		return domain.SendReceipt{}, domain.ErrNoActiveSessions
	}

	sender, conn, err := s.pickSender(req.Sender)
	if err != nil {
		return domain.SendReceipt{}, err
	}

	messageID, err := conn.Relay(ctx, domain.OutboundMessage{Target: target, Text: text})
	if err != nil {
		s.logger.Warn("relay message", zap.String("sender", string(sender)), zap.String("target", string(target)), zap.Error(err))
		return domain.SendReceipt{}, fmt.Errorf("relay via %s: %w", sender, err)
	}

	s.logger.Debug("message relayed", zap.String("sender", string(sender)), zap.String("target", string(target)), zap.String("message_id", messageID))

	return domain.SendReceipt{Sender: sender, Target: target, MessageID: messageID}, nil
}

func (s *RelayService) pickSender(raw string) (domain.Identity, ports.Conn, error) {
	if strings.TrimSpace(raw) == "" {
		id, conn, ok := s.registry.First()
		if !ok {
			return "", nil, domain.ErrNoActiveSessions
		}
		return id, conn, nil
	}

	id, err := domain.NormalizeIdentity(raw)
	if err != nil {
		return "", nil, fmt.Errorf("sender: %w", err)
	}

	conn, ok := s.registry.Get(id)
	if !ok {
		return "", nil, fmt.Errorf("sender %s: %w", id, domain.ErrSessionNotFound)
	}

	return id, conn, nil
}
