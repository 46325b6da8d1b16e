package domain

// InboundEvent is the normalized form of one external notification,
// produced by the classifier and consumed by the routing engine.
type InboundEvent struct {
	SenderID   string
	SenderName string
	Message    Message
}
