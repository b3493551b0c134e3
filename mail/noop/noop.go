package noop

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pure-golang/orderbrowser/logger"
	"github.com/pure-golang/orderbrowser/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender logs emails instead of delivering them and keeps them for inspection.
type Sender struct {
	mx     sync.Mutex
	sent   []mail.Email
	closed bool
}

// NewSender creates a new no-op Sender.
func NewSender() *Sender {
	return &Sender{}
}

// Send records the email and returns a generated Message-ID.
func (n *Sender) Send(ctx context.Context, email mail.Email) (string, error) {
	n.mx.Lock()
	defer n.mx.Unlock()

	if n.closed {
		return "", errors.New("sender is closed")
	}

	id := "<" + uuid.NewString() + "@noop>"
	n.sent = append(n.sent, email)

	to := make([]string, len(email.To))
	for i, addr := range email.To {
		to[i] = addr.Address
	}
	logger.FromContext(ctx).Info("email discarded",
		"message_id", id,
		"from", email.From.Address,
		"to", to,
		"subject", email.Subject,
	)

	return id, nil
}

// Sent returns the emails passed to Send so far.
func (n *Sender) Sent() []mail.Email {
	n.mx.Lock()
	defer n.mx.Unlock()

	return append([]mail.Email(nil), n.sent...)
}

// Close is idempotent.
func (n *Sender) Close() error {
	n.mx.Lock()
	defer n.mx.Unlock()

	n.closed = true
	return nil
}
