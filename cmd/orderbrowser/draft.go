package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pure-golang/orderbrowser/dialog"
	"github.com/pure-golang/orderbrowser/dialog/gemini"
	"github.com/pure-golang/orderbrowser/env"
	"github.com/pure-golang/orderbrowser/relay/client"
)

const (
	generatorTemplate = "template"
	generatorGemini   = "gemini"
)

type draftOptions struct {
	order     string
	supplier  string
	user      string
	to        string
	subject   string
	send      bool
	relayURL  string
	generator string
}

func newDraftCmd() *cobra.Command {
	var opts draftOptions

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft an inquiry mail for a purchase order and optionally send it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				dialogCfg dialog.Config
				clientCfg client.Config
				geminiCfg gemini.Config
			)
			if err := env.InitConfig(&dialogCfg, &clientCfg, &geminiCfg); err != nil {
				return err
			}
			if opts.user != "" {
				dialogCfg.UserName = opts.user
			}
			if opts.relayURL != "" {
				clientCfg.BaseURL = opts.relayURL
			}

			gen, err := newGenerator(cmd.Context(), opts.generator, dialogCfg, geminiCfg)
			if err != nil {
				return err
			}
			return draft(cmd.Context(), cmd.OutOrStdout(), opts, dialogCfg, gen, client.New(clientCfg))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.order, "order", "", "purchase order number")
	f.StringVar(&opts.supplier, "supplier", "", "supplier name")
	f.StringVar(&opts.user, "user", "", "name used in the signature (default DIALOG_USER_NAME)")
	f.StringVar(&opts.to, "to", "", "recipient address")
	f.StringVar(&opts.subject, "subject", "", "override the generated subject")
	f.BoolVar(&opts.send, "send", false, "send the draft through the relay")
	f.StringVar(&opts.relayURL, "relay-url", "", "relay base URL (default RELAY_URL)")
	f.StringVar(&opts.generator, "generator", generatorTemplate, "text generator: template or gemini")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func newGenerator(ctx context.Context, name string, dialogCfg dialog.Config, geminiCfg gemini.Config) (dialog.Generator, error) {
	switch name {
	case generatorTemplate, "":
		return dialog.Template{Interval: dialogCfg.Interval}, nil
	case generatorGemini:
		return gemini.New(ctx, geminiCfg)
	default:
		return nil, errors.Errorf("unknown generator %q", name)
	}
}

// streamWriter prints the part of the draft not printed yet.
type streamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func (s *streamWriter) update(snap dialog.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(snap.Output) < s.printed {
		s.printed = 0
	}
	if len(snap.Output) > s.printed {
		_, _ = io.WriteString(s.w, snap.Output[s.printed:])
		s.printed = len(snap.Output)
	}
}

func draft(ctx context.Context, out io.Writer, opts draftOptions, cfg dialog.Config, gen dialog.Generator, mailer dialog.Mailer) error {
	stream := &streamWriter{w: out}
	session := dialog.NewFromConfig(mailer, cfg, dialog.WithGenerator(gen), dialog.OnChange(stream.update))

	if err := session.Open(dialog.Order{ID: opts.order, Supplier: opts.supplier}); err != nil {
		return err
	}
	if opts.subject != "" {
		session.SetSubject(opts.subject)
	}
	snap := session.Snapshot()
	fmt.Fprintf(out, "To: %s\nSubject: %s\n\n", opts.to, snap.Subject)

	stop := context.AfterFunc(ctx, session.Cancel)
	defer stop()

	if _, err := session.Activate(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	session.Wait()
	fmt.Fprintln(out)

	if err := ctx.Err(); err != nil {
		return err
	}
	if !opts.send {
		session.Cancel()
		return nil
	}

	session.SetRecipient(opts.to)
	if err := session.Send(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Email sent successfully via system!")
	return nil
}
