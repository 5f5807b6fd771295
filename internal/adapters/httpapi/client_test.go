package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/relayd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientAgainstServer(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{states: []domain.SessionStatus{{Identity: "6281111111111", State: domain.StateOpen, Registered: true}}}
	relay := &fakeRelay{}
	srv := httptest.NewServer(NewServer(Config{Tokens: []string{testToken}}, sessions, relay, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/", testToken, srv.Client())
	require.NoError(t, err)

	views, err := client.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []SessionView{{Identity: "6281111111111", State: "open", Registered: true}}, views)

	resp, err := client.Send(context.Background(), SendMessageRequest{Target: "6289999999999", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, SendMessageResponse{Sender: "6281111111111", Target: "6289999999999", MessageID: "MSG1"}, resp)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(Config{Tokens: []string{testToken}}, &fakeSessions{}, &fakeRelay{err: domain.ErrNoActiveSessions}, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "wrong", srv.Client())
	require.NoError(t, err)

	_, err = client.Sessions(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	client, err = NewClient(srv.URL, testToken, srv.Client())
	require.NoError(t, err)

	_, err = client.Send(context.Background(), SendMessageRequest{Target: "6289999999999", Text: "hi"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "no active sessions", apiErr.Message)
}

func TestNewClientAddsScheme(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:8080", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", client.baseURL)

	_, err = NewClient(" ", "", nil)
	require.Error(t, err)
}
