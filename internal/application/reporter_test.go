package application

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/relayd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogReporterLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	reporter := LogReporter{Logger: zap.New(core)}
	ctx := context.Background()

	reporter.Report(ctx, domain.StatusUpdate{Identity: testIdentity, State: domain.StateAwaitingPairing, PairingCode: "ABCD-EFGH"})
	reporter.Report(ctx, domain.StatusUpdate{Identity: testIdentity, State: domain.StateReconnecting, Attempt: 2, Err: errors.New("boom")})
	reporter.Report(ctx, domain.StatusUpdate{Identity: testIdentity, State: domain.StateAbandoned, Attempt: 5})

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "ABCD-EFGH", entries[0].ContextMap()["pairing_code"])
	assert.Equal(t, "6281234567890", entries[0].ContextMap()["identity"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 2, entries[1].ContextMap()["attempt"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "abandoned", entries[2].ContextMap()["state"])
}

func TestReportersFanOut(t *testing.T) {
	t.Parallel()

	first := &recordingReporter{}
	second := &recordingReporter{}
	fanout := Reporters{first, nil, second}

	fanout.Report(context.Background(), domain.StatusUpdate{Identity: testIdentity, State: domain.StateOpen})

	assert.Len(t, first.all(), 1)
	assert.Len(t, second.all(), 1)
}
