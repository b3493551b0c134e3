package relay

import (
	"strconv"
	"strings"

	"github.com/pure-golang/orderbrowser/destination"
)

// primaryKey names the destination's own user/password fields in diagnostics.
const primaryKey = "primary"

// Credential is everything needed to open an SMTP session. It is resolved per request.
type Credential struct {
	User     string
	Password string
	Host     string
	Port     int
	From     string

	// UserKey and PasswordKey name where the values were found.
	UserKey     string
	PasswordKey string
}

// firstNonEmpty walks primary then keys and returns the first non-empty value.
func firstNonEmpty(d *destination.Destination, primary string, keys []string) (string, string) {
	if strings.TrimSpace(primary) != "" {
		return primary, primaryKey
	}
	for _, key := range keys {
		if v, ok := d.Property(key); ok && strings.TrimSpace(v) != "" {
			return v, key
		}
	}
	return "", ""
}

// setting returns the trimmed property value. Blank values count as absent.
func setting(d *destination.Destination, key string) (string, bool) {
	v, ok := d.Property(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// ResolveCredential reads user, password, host and port from d.
func ResolveCredential(d *destination.Destination, cfg Config) (Credential, error) {
	c := Credential{}
	c.User, c.UserKey = firstNonEmpty(d, d.User, cfg.UserKeys)
	c.Password, c.PasswordKey = firstNonEmpty(d, d.Password, cfg.PasswordKeys)

	if c.User == "" || c.Password == "" {
		return c, &CredentialError{
			Destination:  d.Name,
			UserKeys:     append([]string{primaryKey}, cfg.UserKeys...),
			PasswordKeys: append([]string{primaryKey}, cfg.PasswordKeys...),
			MissingUser:  c.User == "",
			MissingPass:  c.Password == "",
		}
	}

	c.Host = cfg.DefaultHost
	if v, ok := setting(d, cfg.HostKey); ok {
		c.Host = v
	}

	c.Port = cfg.DefaultPort
	if v, ok := setting(d, cfg.PortKey); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return c, &ConfigurationError{
				Destination: d.Name,
				Reason:      "has an invalid " + cfg.PortKey + " value " + strconv.Quote(v),
			}
		}
		c.Port = port
	}

	c.From = c.User
	if v, ok := setting(d, cfg.FromKey); ok {
		c.From = v
	}

	return c, nil
}
