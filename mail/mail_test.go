package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_String(t *testing.T) {
	assert.Equal(t, "a@example.com", Address{Address: "a@example.com"}.String())
	assert.Equal(t, `"Order Browser AI" <a@example.com>`, Address{Name: "Order Browser AI", Address: "a@example.com"}.String())
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("Jane Doe <jane@example.com>")
	require.NoError(t, err)
	assert.Equal(t, Address{Name: "Jane Doe", Address: "jane@example.com"}, addr)

	addr, err = ParseAddress("jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, Address{Address: "jane@example.com"}, addr)

	_, err = ParseAddress("not an address")
	assert.Error(t, err)
}
