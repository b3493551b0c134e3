package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/orderbrowser/relay"
)

func TestClient_SendMail(t *testing.T) {
	var (
		calls int
		got   relay.MailRequest
		token string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, relay.SendMailPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		token = r.Header.Get("X-Csrf-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(relay.SuccessMessage))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", CSRFToken: "tok-1", Timeout: time.Second})
	err := c.SendMail(context.Background(), relay.MailRequest{To: "a@x.com", Subject: "S", Text: "T"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, relay.MailRequest{To: "a@x.com", Subject: "S", Text: "T"}, got)
}

func TestClient_SendMail_NoToken(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["X-Csrf-Token"]
	}))
	defer srv.Close()

	require.NoError(t, New(Config{BaseURL: srv.URL}).SendMail(context.Background(), relay.MailRequest{To: "a@x.com"}))
	assert.False(t, present)
}

func TestClient_SendMail_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"plain text", http.StatusInternalServerError, "Failed to send email: Destination 'MyMailService' not found", "Failed to send email: Destination 'MyMailService' not found"},
		{"json error field", http.StatusForbidden, `{"error":"CSRF token validation failed"}`, "CSRF token validation failed"},
		{"json without error", http.StatusBadGateway, `{"detail":"x"}`, `{"detail":"x"}`},
		{"json empty error", http.StatusBadGateway, `{"error":""}`, `{"error":""}`},
		{"empty body", http.StatusServiceUnavailable, "", UnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(Config{BaseURL: srv.URL}).SendMail(context.Background(), relay.MailRequest{To: "a@x.com"})
			require.Error(t, err)

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.status, cerr.Status)
			assert.Equal(t, tt.message, cerr.Message)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestClient_SendMail_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(Config{BaseURL: url, Timeout: time.Second}).SendMail(context.Background(), relay.MailRequest{To: "a@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay request failed")
}
