// Package btp looks destinations up in a remote destination service.
package btp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pure-golang/orderbrowser/destination"
)

const findPath = "/destination-configuration/v1/destinations/"

type Config struct {
	URI          string        `envconfig:"BTP_DESTINATION_URI" required:"true"`
	TokenURL     string        `envconfig:"BTP_TOKEN_URL" required:"true"`
	ClientID     string        `envconfig:"BTP_CLIENT_ID" required:"true"`
	ClientSecret string        `envconfig:"BTP_CLIENT_SECRET" required:"true"`
	Timeout      time.Duration `envconfig:"BTP_TIMEOUT" default:"10s"`
}

var _ destination.Finder = (*Finder)(nil)

// Finder calls the destination service with a client-credentials token.
type Finder struct {
	uri    string
	client *http.Client
}

func New(cfg Config) *Finder {
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	// The token request reuses the instrumented base client.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Finder{
		uri:    strings.TrimRight(cfg.URI, "/"),
		client: cc.Client(ctx),
	}
}

type findResponse struct {
	DestinationConfiguration map[string]any `json:"destinationConfiguration"`
}

func (f *Finder) Find(ctx context.Context, name string) (*destination.Destination, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.uri+findPath+url.PathEscape(name), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "destination service request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read destination service response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, destination.NotFound(name)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("destination service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload findResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode destination service response")
	}
	if payload.DestinationConfiguration == nil {
		return nil, destination.NotFound(name)
	}

	d := &destination.Destination{Name: name, Properties: make(map[string]string)}
	for k, v := range payload.DestinationConfiguration {
		s, ok := stringify(v)
		if !ok {
			continue
		}
		switch k {
		case "Name":
			d.Name = s
		case "User":
			d.User = s
		case "Password":
			d.Password = s
		default:
			d.Properties[k] = s
		}
	}
	return d, nil
}

func stringify(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64, bool:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func (f *Finder) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
