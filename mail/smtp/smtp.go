package smtp

import "time"

// Config contains SMTP connection parameters.
type Config struct {
	Host     string // smtp.gmail.com
	Port     int    // 587 for STARTTLS, 465 for implicit TLS
	Username string // username or email; empty disables AUTH
	Password string // password or app password
	From     string // default from address (optional)

	TLS         bool // upgrade with STARTTLS when the server offers it
	ImplicitTLS bool // dial TLS directly (port 465)
	Insecure    bool // skip certificate verification

	// Timeout bounds the whole SMTP conversation when ctx has no deadline.
	Timeout time.Duration
	// LocalName is sent with EHLO; "localhost" when empty.
	LocalName string
}

// ImplicitTLSPort is the submission port that expects TLS from the first byte.
const ImplicitTLSPort = 465
