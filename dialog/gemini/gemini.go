// Package gemini drafts dialog mails with the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/pure-golang/orderbrowser/dialog"
)

type Config struct {
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	Model   string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`
}

type Generator struct {
	client *genai.Client
	model  string
}

var _ dialog.Generator = (*Generator)(nil)

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	return &Generator{client: client, model: cfg.Model}, nil
}

func (g *Generator) Stream(ctx context.Context, p dialog.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := []*genai.Content{genai.NewContentFromText(instruction(p), genai.RoleUser)}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, nil) {
			if err != nil {
				yield("", errors.Wrap(err, "gemini stream failed"))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// instruction asks for the same inquiry the template produces, with the template as the example.
func instruction(p dialog.Prompt) string {
	return fmt.Sprintf("Write a plain text email to the supplier %q asking about the status "+
		"and expected delivery date of purchase order %s. Sign it as %s. "+
		"Reply with the email body only, no subject line.\n\nExample:\n%s",
		p.Supplier, p.OrderID, p.UserName, dialog.Compose(p))
}
