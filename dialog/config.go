package dialog

import (
	"strings"
	"time"
)

// DefaultUserName is shown in the signature when no user is known.
const DefaultUserName = "Current User"

type Config struct {
	UserName string        `envconfig:"DIALOG_USER_NAME" default:"Current User"`
	Interval time.Duration `envconfig:"DIALOG_INTERVAL" default:"25ms"`
}

// Initials takes the first letter of the first two words of name.
func Initials(name string) string {
	fields := strings.Fields(name)
	var b strings.Builder
	for i, f := range fields {
		if i == 2 {
			break
		}
		b.WriteRune([]rune(f)[0])
	}
	return strings.ToUpper(b.String())
}
