package ports

import (
	"context"

	"github.com/bnema/relayd/internal/domain"
)

type EventKind int

const (
	EventConnecting EventKind = iota + 1
	EventOpen
	EventClosed
	EventCredentials
)

func (k EventKind) String() string {
	switch k {
	case EventConnecting:
		return "connecting"
	case EventOpen:
		return "open"
	case EventClosed:
		return "closed"
	case EventCredentials:
		return "credentials"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind        EventKind
	Reason      domain.DisconnectReason
	Credentials domain.Credentials
}

type Transport interface {
	Connect(ctx context.Context, id domain.Identity, creds domain.Credentials) (Conn, error)
}

// Conn is one live network session. Events is closed once the session is
// gone for good.
type Conn interface {
	Events() <-chan Event
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	Relay(ctx context.Context, msg domain.OutboundMessage) (string, error)
	Close() error
}

type StatusReporter interface {
	Report(ctx context.Context, update domain.StatusUpdate)
}
