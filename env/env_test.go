package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayConfig struct {
	Destination string   `envconfig:"TEST_RELAY_DESTINATION" default:"MyMailService"`
	UserKeys    []string `envconfig:"TEST_RELAY_USER_KEYS" default:"User,user"`
	Port        int      `envconfig:"TEST_RELAY_PORT" default:"587"`
}

type serverConfig struct {
	Port int `envconfig:"TEST_WEBSERVER_PORT" required:"true"`
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestInitConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	var cfg relayConfig
	require.NoError(t, InitConfig(&cfg))

	assert.Equal(t, "MyMailService", cfg.Destination)
	assert.Equal(t, []string{"User", "user"}, cfg.UserKeys)
	assert.Equal(t, 587, cfg.Port)
}

func TestInitConfig_MultipleConfigs(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TEST_WEBSERVER_PORT", "4004")
	t.Setenv("TEST_RELAY_USER_KEYS", "mail.user,User")

	var relay relayConfig
	var server serverConfig
	require.NoError(t, InitConfig(&relay, &server))

	assert.Equal(t, 4004, server.Port)
	assert.Equal(t, []string{"mail.user", "User"}, relay.UserKeys)
}

func TestInitConfig_MissingRequired(t *testing.T) {
	chdir(t, t.TempDir())

	var server serverConfig
	err := InitConfig(&server)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to envconfig.Process")
}

func TestInitConfig_NoConfigs(t *testing.T) {
	err := InitConfig()
	require.Error(t, err)
}

func TestInitConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_RELAY_DESTINATION=FromFile\nTEST_RELAY_PORT=2525\n"), 0600))
	chdir(t, dir)
	t.Cleanup(func() {
		os.Unsetenv("TEST_RELAY_DESTINATION")
		os.Unsetenv("TEST_RELAY_PORT")
	})

	var cfg relayConfig
	require.NoError(t, InitConfig(&cfg))

	assert.Equal(t, "FromFile", cfg.Destination)
	assert.Equal(t, 2525, cfg.Port)
}

func TestInitConfig_EnvFileOverrideAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env.relay")
	require.NoError(t, os.WriteFile(file, []byte("TEST_RELAY_DESTINATION=FromRelayFile\nTEST_RELAY_PORT=2526\n"), 0600))
	chdir(t, dir)
	t.Setenv(FileVariable, file)
	t.Setenv("TEST_RELAY_PORT", "465")
	t.Cleanup(func() { os.Unsetenv("TEST_RELAY_DESTINATION") })

	var cfg relayConfig
	require.NoError(t, InitConfig(&cfg))

	assert.Equal(t, "FromRelayFile", cfg.Destination)
	assert.Equal(t, 465, cfg.Port, "environment wins over the file")
}
