package application

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/relayd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayServiceRejectsWhenRegistryEmpty(t *testing.T) {
	t.Parallel()

	svc := NewRelayService(NewRegistry(), DefaultRelayConfig(), nil)

	_, err := svc.Send(context.Background(), SendRequest{Target: "6289876543210", Text: "hello"})
	require.ErrorIs(t, err, domain.ErrNoActiveSessions)
}

func TestRelayServiceValidatesRequest(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	require.NoError(t, registry.Put(testIdentity, newFakeConn(testIdentity)))
	svc := NewRelayService(registry, DefaultRelayConfig(), nil)

	_, err := svc.Send(context.Background(), SendRequest{Target: "not-a-number", Text: "hello"})
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)

	_, err = svc.Send(context.Background(), SendRequest{Target: "6289876543210", Text: "   "})
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = svc.Send(context.Background(), SendRequest{Target: "6289876543210", Text: "hi", Sender: "6280000000000"})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRelayServiceUsesFirstSessionOnce(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	low := newFakeConn("6281111111111")
	high := newFakeConn("6282222222222")
	require.NoError(t, registry.Put(high.id, high))
	require.NoError(t, registry.Put(low.id, low))
	svc := NewRelayService(registry, DefaultRelayConfig(), nil)

	receipt, err := svc.Send(context.Background(), SendRequest{Target: "+62 898-7654-3210", Text: " hello "})
	require.NoError(t, err)
	assert.Equal(t, domain.SendReceipt{Sender: low.id, Target: "6289876543210", MessageID: "msg-6281111111111"}, receipt)

	assert.Equal(t, []domain.OutboundMessage{{Target: "6289876543210", Text: "hello"}}, low.messages())
	assert.Empty(t, high.messages())
}

func TestRelayServiceHonoursExplicitSender(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	low := newFakeConn("6281111111111")
	high := newFakeConn("6282222222222")
	require.NoError(t, registry.Put(low.id, low))
	require.NoError(t, registry.Put(high.id, high))
	svc := NewRelayService(registry, DefaultRelayConfig(), nil)

	receipt, err := svc.Send(context.Background(), SendRequest{Target: "6289876543210", Text: "hi", Sender: "6282222222222"})
	require.NoError(t, err)
	assert.Equal(t, high.id, receipt.Sender)
	assert.Len(t, high.messages(), 1)
	assert.Empty(t, low.messages())
}

func TestRelayServiceWrapsTransportError(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	conn := newFakeConn(testIdentity)
	conn.relayErr = errors.New("socket closed")
	require.NoError(t, registry.Put(testIdentity, conn))
	svc := NewRelayService(registry, DefaultRelayConfig(), nil)

	_, err := svc.Send(context.Background(), SendRequest{Target: "6289876543210", Text: "hi"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "relay via 6281234567890")
	assert.ErrorContains(t, err, "socket closed")
}

func TestRelayServiceRewritesNationalTargets(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		countryCode string
		target      string
		want        domain.Identity
	}{
		{name: "trunk zero", countryCode: "62", target: "0812-3456-7890", want: "6281234567890"},
		{name: "bare mobile prefix", countryCode: "62", target: "812 3456 7890", want: "6281234567890"},
		{name: "already international", countryCode: "62", target: "+62 812 3456 7890", want: "6281234567890"},
		{name: "rewrite disabled", countryCode: "", target: "08123456789", want: "08123456789"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			registry := NewRegistry()
			conn := newFakeConn(testIdentity)
			require.NoError(t, registry.Put(testIdentity, conn))
			svc := NewRelayService(registry, RelayConfig{CountryCode: tc.countryCode}, nil)

			receipt, err := svc.Send(context.Background(), SendRequest{Target: tc.target, Text: "hi"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, receipt.Target)
			assert.Equal(t, tc.want, conn.messages()[0].Target)
		})
	}
}
