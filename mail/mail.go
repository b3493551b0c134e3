// Package mail describes outbound email and the transports that deliver it.
package mail

import (
	"context"
	"io"
	netmail "net/mail"
)

// Sender delivers one email per call and returns its Message-ID.
type Sender interface {
	Send(ctx context.Context, email Email) (string, error)
	io.Closer
}

// Email represents an email message.
type Email struct {
	From    Address
	To      []Address
	ReplyTo []Address
	Subject string

	// Headers are written verbatim after the standard ones.
	Headers map[string]string

	Body string // Plain text body
}

// Address represents an email address.
type Address struct {
	Name    string // "Order Browser AI"
	Address string // "purchasing@example.com"
}

// String formats the address for a header, quoting and encoding the name when needed.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return (&netmail.Address{Name: a.Name, Address: a.Address}).String()
}

// ParseAddress accepts "name <addr>" or a bare address.
func ParseAddress(s string) (Address, error) {
	parsed, err := netmail.ParseAddress(s)
	if err != nil {
		return Address{}, err
	}
	return Address{Name: parsed.Name, Address: parsed.Address}, nil
}
