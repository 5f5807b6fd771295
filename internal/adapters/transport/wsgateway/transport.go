package wsgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventBuffer      = 32
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 15 * time.Second
)

var errConnClosed = errors.New("gateway connection closed")

type Config struct {
	URL   string
	Token string
}

// Transport dials one websocket per identity to a session gateway.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ ports.Transport = (*Transport)(nil)

func New(cfg Config, logger *zap.Logger) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("gateway url is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transport{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshakeTimeout},
		logger: logger,
	}, nil
}

func (t *Transport) Connect(ctx context.Context, id domain.Identity, creds domain.Credentials) (ports.Conn, error) {
	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	ws, _, err := t.dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	c := &conn{
		id:      id,
		ws:      ws,
		logger:  t.logger.With(zap.String("identity", string(id))),
		events:  make(chan ports.Event, eventBuffer),
		pending: map[string]chan frame{},
		done:    make(chan struct{}),
	}

	if err := c.write(frame{Type: frameHello, Identity: string(id), Credentials: creds.Files}); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	go c.readLoop()

	return c, nil
}

type conn struct {
	id     domain.Identity
	ws     *websocket.Conn
	logger *zap.Logger
	events chan ports.Event

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame

	closeOnce sync.Once
	done      chan struct{}
}

func (c *conn) Events() <-chan ports.Event {
	return c.events
}

func (c *conn) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	return c.call(ctx, frame{Type: framePairingCode, Phone: phone})
}

func (c *conn) Relay(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	return c.call(ctx, frame{Type: frameRelay, Target: string(msg.Target), Text: msg.Text})
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

// call sends a request frame and waits for the matching result.
func (c *conn) call(ctx context.Context, req frame) (string, error) {
	req.ID = uuid.NewString()
	reply := make(chan frame, 1)

	c.mu.Lock()
	c.pending[req.ID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return "", fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case res := <-reply:
		if !res.OK {
			if res.Error == "" {
				res.Error = "request rejected"
			}
			return "", fmt.Errorf("%s: %s", req.Type, res.Error)
		}
		return res.Value, nil
	case <-c.done:
		return "", fmt.Errorf("%s: %w", req.Type, errConnClosed)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *conn) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(f)
}

func (c *conn) readLoop() {
	defer close(c.events)

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.emit(ports.Event{Kind: ports.EventClosed, Reason: closeReason(err)})
			return
		}

		switch f.Type {
		case frameConnection:
			ev, ok := connectionEvent(f)
			if !ok {
				c.logger.Debug("ignore connection frame", zap.String("state", f.State))
				continue
			}
			if !c.emit(ev) {
				return
			}
			if ev.Kind == ports.EventClosed {
				return
			}
		case frameCredentials:
			if !c.emit(ports.Event{Kind: ports.EventCredentials, Credentials: domain.Credentials{Files: f.Credentials}}) {
				return
			}
		case frameResult:
			c.resolve(f)
		default:
			c.logger.Debug("ignore frame", zap.String("type", f.Type))
		}
	}
}

func (c *conn) emit(ev ports.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *conn) resolve(f frame) {
	c.mu.Lock()
	reply, ok := c.pending[f.ID]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("result for unknown request", zap.String("id", f.ID))
		return
	}

	select {
	case reply <- f:
	default:
	}
}

func connectionEvent(f frame) (ports.Event, bool) {
	switch f.State {
	case connStateConnecting:
		return ports.Event{Kind: ports.EventConnecting}, true
	case connStateOpen:
		return ports.Event{Kind: ports.EventOpen}, true
	case connStateClose:
		return ports.Event{Kind: ports.EventClosed, Reason: domain.DisconnectReason{Code: f.Status, Message: f.Reason}}, true
	default:
		return ports.Event{}, false
	}
}

// closeReason maps a read failure to a disconnect reason. Application close
// codes 4000-4999 carry the gateway status as code-4000.
func closeReason(err error) domain.DisconnectReason {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code >= 4000 && closeErr.Code < 5000 {
			return domain.DisconnectReason{Code: closeErr.Code - 4000, Message: closeErr.Text}
		}
		return domain.DisconnectReason{Message: closeErr.Error()}
	}

	return domain.DisconnectReason{Message: err.Error()}
}
