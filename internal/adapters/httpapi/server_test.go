package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bnema/relayd/internal/application"
	"github.com/bnema/relayd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "s3cret"

type fakeSessions struct {
	states  []domain.SessionStatus
	stopErr error
	stopped []domain.Identity
}

func (f *fakeSessions) States() []domain.SessionStatus { return f.states }

func (f *fakeSessions) Stop(_ context.Context, id domain.Identity) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, id)
	return nil
}

type fakeRelay struct {
	err      error
	requests []application.SendRequest
}

func (f *fakeRelay) Send(_ context.Context, req application.SendRequest) (domain.SendReceipt, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.SendReceipt{}, f.err
	}
	return domain.SendReceipt{Sender: "6281111111111", Target: domain.Identity(req.Target), MessageID: "MSG1"}, nil
}

type decoded struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, decoded) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func newTestServer(sessions *fakeSessions, relay *fakeRelay) http.Handler {
	return NewServer(Config{Tokens: []string{"", testToken}}, sessions, relay, zap.NewNop()).Handler()
}

func TestHealthNeedsNoToken(t *testing.T) {
	t.Parallel()

	rec, body := do(t, newTestServer(&fakeSessions{}, &fakeRelay{}), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, rec.Header().Get(requestIDHeader), body.RequestID)
}

func TestAPIRequiresToken(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeSessions{}, &fakeRelay{})
	for _, token := range []string{"", "wrong"} {
		rec, body := do(t, h, http.MethodGet, "/api/sessions", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, body.Success)
		assert.Equal(t, "unauthorized", body.Message)
	}
}

func TestAPIWithoutConfiguredTokensRefusesEverything(t *testing.T) {
	t.Parallel()

	h := NewServer(Config{}, &fakeSessions{}, &fakeRelay{}, zap.NewNop()).Handler()
	rec, _ := do(t, h, http.MethodGet, "/api/sessions", "anything", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSessions(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{states: []domain.SessionStatus{
		{Identity: "6281111111111", State: domain.StateOpen, Registered: true},
		{Identity: "6282222222222", State: domain.StateReconnecting, Attempt: 2},
	}}

	rec, body := do(t, newTestServer(sessions, &fakeRelay{}), http.MethodGet, "/api/sessions", testToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"identity":"6281111111111","state":"open","registered":true},
		{"identity":"6282222222222","state":"reconnecting","registered":false,"attempt":2}
	]`, string(body.Data))
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		stopErr error
		status  int
	}{
		{name: "deleted", path: "/api/sessions/6281234567890", status: http.StatusOK},
		{name: "unknown", path: "/api/sessions/6281234567890", stopErr: domain.ErrSessionNotFound, status: http.StatusNotFound},
		{name: "already stopping", path: "/api/sessions/6281234567890", stopErr: domain.ErrPairingInProgress, status: http.StatusConflict},
		{name: "invalid", path: "/api/sessions/abc", status: http.StatusBadRequest},
		{name: "cleanup failure", path: "/api/sessions/6281234567890", stopErr: errors.New("disk"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sessions := &fakeSessions{stopErr: tt.stopErr}
			rec, body := do(t, newTestServer(sessions, &fakeRelay{}), http.MethodDelete, tt.path, testToken, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, body.Success)
			if tt.status == http.StatusOK {
				assert.Equal(t, []domain.Identity{"6281234567890"}, sessions.stopped)
			}
		})
	}
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	rec, body := do(t, newTestServer(&fakeSessions{}, relay), http.MethodPost, "/api/messages", testToken,
		`{"target":"6289999999999","text":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.JSONEq(t, `{"sender":"6281111111111","target":"6289999999999","message_id":"MSG1"}`, string(body.Data))
	require.Len(t, relay.requests, 1)
	assert.Equal(t, application.SendRequest{Target: "6289999999999", Text: "hello"}, relay.requests[0])
}

func TestSendMessageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{"target":`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"target":"1","count":50}`, status: http.StatusBadRequest},
		{name: "invalid target", body: `{"target":"x","text":"hi"}`, err: domain.ErrInvalidIdentity, status: http.StatusBadRequest},
		{name: "empty text", body: `{"target":"6289999999999"}`, err: domain.ErrEmptyMessage, status: http.StatusBadRequest},
		{name: "no sessions", body: `{"target":"6289999999999","text":"hi"}`, err: domain.ErrNoActiveSessions, status: http.StatusConflict},
		{name: "unknown sender", body: `{"target":"6289999999999","text":"hi","sender":"6280000000000"}`, err: domain.ErrSessionNotFound, status: http.StatusNotFound},
		{name: "gateway failure", body: `{"target":"6289999999999","text":"hi"}`, err: errors.New("timeout"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, body := do(t, newTestServer(&fakeSessions{}, &fakeRelay{err: tt.err}), http.MethodPost, "/api/messages", testToken, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, body.Success)
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		assert.Equal(t, want, bearerToken(req), header)
	}
}
