package relay

import (
	"fmt"
	"strings"

	"github.com/pure-golang/orderbrowser/destination"
)

// ConfigurationError means the destination could not be located or is unusable.
type ConfigurationError struct {
	Destination string
	Reason      string
	Err         error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("Destination '%s' %s", e.Destination, e.Reason)
	if e.Err != nil && !destination.IsNotFound(e.Err) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CredentialError means no user/password pair was found. It lists every key checked.
type CredentialError struct {
	Destination  string
	UserKeys     []string
	PasswordKeys []string
	MissingUser  bool
	MissingPass  bool
}

func (e *CredentialError) Error() string {
	var missing []string
	if e.MissingUser {
		missing = append(missing, "user (checked: "+strings.Join(e.UserKeys, ", ")+")")
	}
	if e.MissingPass {
		missing = append(missing, "password (checked: "+strings.Join(e.PasswordKeys, ", ")+")")
	}
	return fmt.Sprintf("Credentials missing in destination '%s': %s", e.Destination, strings.Join(missing, "; "))
}

// DeliveryError wraps a transport failure.
type DeliveryError struct {
	Host string
	Port int
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s:%d failed: %v", e.Host, e.Port, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ValidationError means the request itself is unusable. Like every other
// relay failure it is answered with a 500.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
