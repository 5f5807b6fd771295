package application

import (
	"context"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"go.uber.org/zap"
)

// LogReporter reports session progress to the process log. It is used for
// sessions started without an interactive caller.
type LogReporter struct {
	Logger *zap.Logger
}

var _ ports.StatusReporter = LogReporter{}

func (r LogReporter) Report(_ context.Context, update domain.StatusUpdate) {
	logger := r.Logger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("identity", string(update.Identity)),
		zap.Stringer("state", update.State),
	}
	if update.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", update.Attempt))
	}
	if update.Reason != nil {
		fields = append(fields, zap.Stringer("reason", update.Reason))
	}
	if update.PairingCode != "" {
		fields = append(fields, zap.String("pairing_code", update.PairingCode))
	}

	switch {
	case update.Err != nil:
		logger.Warn("session update", append(fields, zap.Error(update.Err))...)
	case update.State == domain.StateAbandoned:
		logger.Error("session update", fields...)
	default:
		logger.Info("session update", fields...)
	}
}

// Reporters fans one update out to several reporters in order.
type Reporters []ports.StatusReporter

func (rs Reporters) Report(ctx context.Context, update domain.StatusUpdate) {
	for _, r := range rs {
		if r != nil {
			r.Report(ctx, update)
		}
	}
}
