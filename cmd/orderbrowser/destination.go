package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pure-golang/orderbrowser/destination"
	"github.com/pure-golang/orderbrowser/destination/provider"
	"github.com/pure-golang/orderbrowser/env"
	"github.com/pure-golang/orderbrowser/relay"
)

func newDestinationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destination",
		Short: "Inspect and write mail destinations",
	}
	cmd.AddCommand(newDestinationCheckCmd())
	cmd.AddCommand(newDestinationPutCmd())
	return cmd
}

func newDestinationCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [NAME]",
		Short: "Resolve SMTP credentials the way the relay does",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				relayCfg relay.Config
				destCfg  provider.Config
			)
			if err := env.InitConfig(&relayCfg, &destCfg); err != nil {
				return err
			}
			if len(args) == 1 {
				relayCfg.Destination = args[0]
			}

			finder, err := provider.New(cmd.Context(), destCfg)
			if err != nil {
				return err
			}
			defer finder.Close()

			return checkDestination(cmd.Context(), cmd.OutOrStdout(), finder, relayCfg)
		},
	}
}

func checkDestination(ctx context.Context, out io.Writer, finder destination.Finder, cfg relay.Config) error {
	d, cred, err := relay.New(cfg, finder).Resolve(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "destination: %s\n", cfg.Destination)
	fmt.Fprintf(out, "host:        %s\n", cred.Host)
	fmt.Fprintf(out, "port:        %d\n", cred.Port)
	fmt.Fprintf(out, "from:        %s\n", cred.From)
	fmt.Fprintf(out, "user:        %s (%s)\n", cred.User, cred.UserKey)
	fmt.Fprintf(out, "password:    %s (%s)\n", mask(cred.Password), cred.PasswordKey)
	if keys := d.PropertyKeys(); len(keys) > 0 {
		fmt.Fprintf(out, "properties:  %s\n", strings.Join(keys, ", "))
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

type putOptions struct {
	user       string
	password   string
	properties map[string]string
}

func newDestinationPutCmd() *cobra.Command {
	var opts putOptions

	cmd := &cobra.Command{
		Use:   "put NAME",
		Short: "Write a destination to the redis or postgres provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg provider.Config
			if err := env.InitConfig(&cfg); err != nil {
				return err
			}

			store, err := provider.NewStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			return putDestination(cmd.Context(), cmd.OutOrStdout(), store, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.user, "user", "", "primary user")
	f.StringVar(&opts.password, "password", "", "primary password")
	f.StringToStringVar(&opts.properties, "property", nil, "extra property key=value, repeatable")

	return cmd
}

func putDestination(ctx context.Context, out io.Writer, store destination.Store, name string, opts putOptions) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("destination name is required")
	}

	d := destination.Destination{
		Name:       name,
		User:       opts.user,
		Password:   opts.password,
		Properties: opts.properties,
	}
	if err := store.Put(ctx, d); err != nil {
		return err
	}

	fmt.Fprintf(out, "destination %s saved\n", name)
	return nil
}
