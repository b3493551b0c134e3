//go:build integration
// +build integration

package smtp

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/pure-golang/orderbrowser/mail"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startMailHog starts a MailHog container and returns its SMTP host and port.
func startMailHog(t *testing.T) (string, int) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mailhog/mailhog:latest",
			ExposedPorts: []string{"1025/tcp", "8025/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Starting SMTP"),
				wait.ForListeningPort("1025/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start mailhog container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1025")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return host, portNum
}

func TestSender_Integration_MailHog(t *testing.T) {
	host, port := startMailHog(t)

	sender := NewSender(Config{
		Host:    host,
		Port:    port,
		TLS:     true, // MailHog does not advertise STARTTLS, the session stays plain
		Timeout: 10 * time.Second,
	})
	defer sender.Close()

	id, err := sender.Send(context.Background(), mail.Email{
		From:    mail.Address{Name: "Order Browser AI", Address: "buyer@example.com"},
		To:      []mail.Address{{Address: "supplier@example.com"}},
		Subject: "Inquiry regarding Order 4500000001 - Acme Corp",
		Body:    "Dear Acme Corp,\n\nBest regards,\nJane Doe",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
}
