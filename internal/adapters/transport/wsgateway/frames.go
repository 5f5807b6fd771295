package wsgateway

const (
	frameHello       = "hello"
	framePairingCode = "pairing_code"
	frameRelay       = "relay"
	frameConnection  = "connection"
	frameCredentials = "credentials"
	frameResult      = "result"
)

const (
	connStateConnecting = "connecting"
	connStateOpen       = "open"
	connStateClose      = "close"
)

// frame is the single JSON envelope exchanged with the gateway. []byte
// values travel base64 encoded.
type frame struct {
	Type        string            `json:"type"`
	ID          string            `json:"id,omitempty"`
	Identity    string            `json:"identity,omitempty"`
	Credentials map[string][]byte `json:"credentials,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Target      string            `json:"target,omitempty"`
	Text        string            `json:"text,omitempty"`
	State       string            `json:"state,omitempty"`
	Status      int               `json:"status,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	OK          bool              `json:"ok,omitempty"`
	Value       string            `json:"value,omitempty"`
	Error       string            `json:"error,omitempty"`
}
