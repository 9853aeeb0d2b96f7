package email

import "context"

// Message is a fully rendered outbound email.
type Message struct {
	To       string
	ToName   string
	From     string
	FromName string
	Subject  string
	HTML     string
	Text     string
}

// Transport delivers a single message and returns the provider message id.
// Implementations must honor ctx cancellation; the dispatcher bounds each
// attempt with a deadline.
type Transport interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}
