package domain

import "fmt"

type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAwaitingPairing
	StateOpen
	StateClosing
	StateReconnecting
	StateAbandoned
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	StatusLoggedOut          = 401
	StatusForbidden          = 403
	StatusTimedOut           = 408
	StatusConnectionClosed   = 428
	StatusConnectionReplaced = 440
	StatusBadSession         = 500
	StatusRestartRequired    = 515
)

// DisconnectReason describes why the transport closed a session. Code 0
// means the socket dropped without a status.
type DisconnectReason struct {
	Code    int
	Message string
}

// IsTerminal reports whether the remote side invalidated the session. Those
// sessions must not be retried and their credentials are discarded.
func (r DisconnectReason) IsTerminal() bool {
	return r.Code == StatusLoggedOut || r.Code == StatusForbidden
}

func (r DisconnectReason) String() string {
	if r.Message == "" {
		return fmt.Sprintf("status %d", r.Code)
	}
	return fmt.Sprintf("status %d: %s", r.Code, r.Message)
}

// SessionStatus is a point-in-time view of one supervised identity.
type SessionStatus struct {
	Identity   Identity
	State      SessionState
	Registered bool
	Attempt    int
}

// StatusUpdate is what the supervisor reports to whoever started a session.
type StatusUpdate struct {
	Identity    Identity
	State       SessionState
	PairingCode string
	Attempt     int
	Reason      *DisconnectReason
	Err         error
}
