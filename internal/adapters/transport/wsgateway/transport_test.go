package wsgateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdentity domain.Identity = "6281234567890"

type gatewayScript func(t *testing.T, ws *websocket.Conn)

func newGateway(t *testing.T, script gatewayScript) (*Transport, <-chan http.Header) {
	t.Helper()

	headers := make(chan http.Header, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		script(t, ws)
	}))
	t.Cleanup(server.Close)

	transport, err := New(Config{URL: "ws" + strings.TrimPrefix(server.URL, "http"), Token: "gw-token"}, nil)
	require.NoError(t, err)

	return transport, headers
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()

	var f frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func nextEvent(t *testing.T, conn ports.Conn) ports.Event {
	t.Helper()

	select {
	case ev, ok := <-conn.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ports.Event{}
	}
}

func TestTransportSessionLifecycle(t *testing.T) {
	t.Parallel()

	serverDone := make(chan struct{})
	transport, headers := newGateway(t, func(t *testing.T, ws *websocket.Conn) {
		defer close(serverDone)

		hello := readFrame(t, ws)
		assert.Equal(t, frameHello, hello.Type)
		assert.Equal(t, string(testIdentity), hello.Identity)
		assert.Empty(t, hello.Credentials)

		require.NoError(t, ws.WriteJSON(frame{Type: frameConnection, State: connStateConnecting}))

		pairing := readFrame(t, ws)
		assert.Equal(t, framePairingCode, pairing.Type)
		assert.Equal(t, string(testIdentity), pairing.Phone)
		require.NoError(t, ws.WriteJSON(frame{Type: frameResult, ID: pairing.ID, OK: true, Value: "ABCDEFGH"}))

		require.NoError(t, ws.WriteJSON(frame{Type: frameCredentials, Credentials: map[string][]byte{
			domain.CredentialsMainFile: []byte(`{"me":"6281234567890"}`),
		}}))
		require.NoError(t, ws.WriteJSON(frame{Type: frameConnection, State: connStateOpen}))

		relay := readFrame(t, ws)
		assert.Equal(t, frameRelay, relay.Type)
		assert.Equal(t, "6289876543210", relay.Target)
		assert.Equal(t, "hello", relay.Text)
		require.NoError(t, ws.WriteJSON(frame{Type: frameResult, ID: relay.ID, OK: true, Value: "MSG-1"}))

		require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4000+domain.StatusLoggedOut, "logged out")))
		_, _, _ = ws.ReadMessage()
	})

	ctx := context.Background()
	conn, err := transport.Connect(ctx, testIdentity, domain.NewCredentials())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "Bearer gw-token", (<-headers).Get("Authorization"))
	assert.Equal(t, ports.EventConnecting, nextEvent(t, conn).Kind)

	code, err := conn.RequestPairingCode(ctx, string(testIdentity))
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", code)

	creds := nextEvent(t, conn)
	require.Equal(t, ports.EventCredentials, creds.Kind)
	assert.False(t, creds.Credentials.Empty())

	assert.Equal(t, ports.EventOpen, nextEvent(t, conn).Kind)

	id, err := conn.Relay(ctx, domain.OutboundMessage{Target: "6289876543210", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "MSG-1", id)

	closed := nextEvent(t, conn)
	require.Equal(t, ports.EventClosed, closed.Kind)
	assert.Equal(t, domain.StatusLoggedOut, closed.Reason.Code)
	assert.True(t, closed.Reason.IsTerminal())

	_, ok := <-conn.Events()
	assert.False(t, ok, "event stream closes after a disconnect")

	<-serverDone
}

func TestTransportSendsStoredCredentials(t *testing.T) {
	t.Parallel()

	received := make(chan frame, 1)
	transport, _ := newGateway(t, func(t *testing.T, ws *websocket.Conn) {
		received <- readFrame(t, ws)
		require.NoError(t, ws.WriteJSON(frame{Type: frameConnection, State: connStateClose, Status: domain.StatusRestartRequired, Reason: "restart"}))
		_, _, _ = ws.ReadMessage()
	})

	creds := domain.Credentials{Files: map[string][]byte{domain.CredentialsMainFile: []byte(`{"k":"v"}`)}}
	conn, err := transport.Connect(context.Background(), testIdentity, creds)
	require.NoError(t, err)
	defer conn.Close()

	hello := <-received
	assert.Equal(t, `{"k":"v"}`, string(hello.Credentials[domain.CredentialsMainFile]))

	closed := nextEvent(t, conn)
	require.Equal(t, ports.EventClosed, closed.Kind)
	assert.Equal(t, domain.StatusRestartRequired, closed.Reason.Code)
	assert.False(t, closed.Reason.IsTerminal())
}

func TestTransportRequestErrorsAndDroppedSocket(t *testing.T) {
	t.Parallel()

	transport, _ := newGateway(t, func(t *testing.T, ws *websocket.Conn) {
		readFrame(t, ws)
		req := readFrame(t, ws)
		require.NoError(t, ws.WriteJSON(frame{Type: frameResult, ID: req.ID, OK: false, Error: "rate limited"}))
	})

	conn, err := transport.Connect(context.Background(), testIdentity, domain.NewCredentials())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.RequestPairingCode(context.Background(), string(testIdentity))
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")

	closed := nextEvent(t, conn)
	require.Equal(t, ports.EventClosed, closed.Kind)
	assert.Zero(t, closed.Reason.Code)
	assert.False(t, closed.Reason.IsTerminal())
}

func TestTransportCallFailsAfterClose(t *testing.T) {
	t.Parallel()

	transport, _ := newGateway(t, func(t *testing.T, ws *websocket.Conn) {
		readFrame(t, ws)
		_, _, _ = ws.ReadMessage()
	})

	conn, err := transport.Connect(context.Background(), testIdentity, domain.NewCredentials())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err = conn.Relay(context.Background(), domain.OutboundMessage{Target: "6289876543210", Text: "hi"})
	require.ErrorIs(t, err, errConnClosed)
}

func TestNewRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestTransportKeepsNullCredentialAsRemoval(t *testing.T) {
	t.Parallel()

	transport, _ := newGateway(t, func(t *testing.T, ws *websocket.Conn) {
		readFrame(t, ws)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"credentials","credentials":{"pre-key-1.json":null,"creds.json":"e30="}}`)))
		_, _, _ = ws.ReadMessage()
	})

	conn, err := transport.Connect(context.Background(), testIdentity, domain.NewCredentials())
	require.NoError(t, err)
	defer conn.Close()

	ev := nextEvent(t, conn)
	require.Equal(t, ports.EventCredentials, ev.Kind)
	removed, ok := ev.Credentials.Files["pre-key-1.json"]
	require.True(t, ok)
	assert.Nil(t, removed)
	assert.Equal(t, "{}", string(ev.Credentials.Files[domain.CredentialsMainFile]))
}
