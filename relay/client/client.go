// Package client calls the relay's POST /send-mail endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pure-golang/orderbrowser/relay"
)

// UnknownError is the message used when the relay gives no reason.
const UnknownError = "Unknown error"

type Config struct {
	BaseURL   string        `envconfig:"RELAY_URL" default:"http://localhost:4004"`
	CSRFToken string        `envconfig:"RELAY_CSRF_TOKEN"`
	Timeout   time.Duration `envconfig:"RELAY_CLIENT_TIMEOUT" default:"60s"`
}

// Error is a non-2xx answer from the relay.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.CSRFToken,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
	}
}

// SendMail posts req once. It never retries.
func (c *Client) SendMail(ctx context.Context, req relay.MailRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to encode mail request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+relay.SendMailPath, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("X-Csrf-Token", c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "relay request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return &Error{Status: resp.StatusCode, Message: errorMessage(body)}
}

// errorMessage prefers a JSON "error" field, then the raw body.
func errorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return UnknownError
	}

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil {
			if s != "" {
				return s
			}
		} else if string(payload.Error) != "null" {
			return string(payload.Error)
		}
	}
	return text
}
