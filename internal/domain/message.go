package domain

type OutboundMessage struct {
	Target Identity
	Text   string
}

type SendReceipt struct {
	Sender    Identity
	Target    Identity
	MessageID string
}
