package relay

import "time"

// Transport selects how the relay delivers mail.
type Transport string

const (
	TransportSMTP Transport = "smtp"
	// TransportNoop logs mail instead of sending it. Local runs only.
	TransportNoop Transport = "noop"
)

type Config struct {
	Destination  string   `envconfig:"RELAY_DESTINATION" default:"MyMailService"`
	UserKeys     []string `envconfig:"RELAY_USER_KEYS" default:"User,user"`
	PasswordKeys []string `envconfig:"RELAY_PASSWORD_KEYS" default:"Password,password"`

	HostKey     string `envconfig:"RELAY_HOST_KEY" default:"mail.smtp.host"`
	PortKey     string `envconfig:"RELAY_PORT_KEY" default:"mail.smtp.port"`
	FromKey     string `envconfig:"RELAY_FROM_KEY" default:"mail.smtp.from"`
	DefaultHost string `envconfig:"RELAY_DEFAULT_HOST" default:"smtp.gmail.com"`
	DefaultPort int    `envconfig:"RELAY_DEFAULT_PORT" default:"587"`

	FromName  string    `envconfig:"RELAY_FROM_NAME" default:"Order Browser AI"`
	Insecure  bool      `envconfig:"RELAY_SMTP_INSECURE" default:"true"`
	Transport Transport `envconfig:"RELAY_TRANSPORT" default:"smtp"`

	LookupTimeout time.Duration `envconfig:"RELAY_LOOKUP_TIMEOUT" default:"10s"`
	SendTimeout   time.Duration `envconfig:"RELAY_SEND_TIMEOUT" default:"30s"`
	MaxBodyBytes  int64         `envconfig:"RELAY_MAX_BODY_BYTES" default:"1048576"`
}

// DefaultConfig matches the envconfig defaults.
func DefaultConfig() Config {
	return Config{
		Destination:   "MyMailService",
		UserKeys:      []string{"User", "user"},
		PasswordKeys:  []string{"Password", "password"},
		HostKey:       "mail.smtp.host",
		PortKey:       "mail.smtp.port",
		FromKey:       "mail.smtp.from",
		DefaultHost:   "smtp.gmail.com",
		DefaultPort:   587,
		FromName:      "Order Browser AI",
		Insecure:      true,
		Transport:     TransportSMTP,
		LookupTimeout: 10 * time.Second,
		SendTimeout:   30 * time.Second,
		MaxBodyBytes:  1 << 20,
	}
}
