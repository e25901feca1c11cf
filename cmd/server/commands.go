package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"apiresource/internal/config"
	appctx "apiresource/internal/core/context"
	"apiresource/internal/domain/blog"
	"apiresource/internal/infrastructure/storage/postgres"
	"apiresource/internal/security"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table in matching order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			_, reg, err := newResources()
			if err != nil {
				return err
			}

			base := strings.TrimRight(cfg.API.BasePath, "/")
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RESOURCE\tOPERATION\tKIND\tMETHOD\tPATH\tMAIN")
			for _, r := range reg.Routes() {
				mark := ""
				if r.Main {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Resource, r.Operation, r.Kind, r.Method, base+r.Path, mark)
			}
			return w.Flush()
		},
	}
}

type tokenOptions struct {
	subject string
	email   string
	roles   []string
	admin   bool
	ttl     time.Duration
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	t := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			if t.subject == "" {
				return errors.New("--sub is required")
			}

			jwtCfg := security.DefaultJWTConfig(cfg.Auth.JWTSecret)
			if cfg.Auth.Issuer != "" {
				jwtCfg.Issuer = cfg.Auth.Issuer
			}
			jwtCfg.AccessTokenTTL = cfg.Auth.TokenTTL
			if t.ttl > 0 {
				jwtCfg.AccessTokenTTL = t.ttl
			}

			token, exp, err := security.NewJWTService(jwtCfg).GenerateAccessToken(appctx.Caller{
				UserID:  t.subject,
				Email:   t.email,
				Roles:   t.roles,
				IsAdmin: t.admin,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&t.subject, "sub", "", "user id (token subject)")
	cmd.Flags().StringVar(&t.email, "email", "", "user email")
	cmd.Flags().StringSliceVar(&t.roles, "role", nil, "role granted to the user (repeatable)")
	cmd.Flags().BoolVar(&t.admin, "admin", false, "mark the user as administrator")
	cmd.Flags().DurationVar(&t.ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of the example domain in PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			store, closeStore, err := openPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Migrate(cmd.Context(), blog.Schema); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the example data set into PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			store, closeStore, err := openPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			catalog, _, err := newResources()
			if err != nil {
				return err
			}
			n, err := blog.Seed(cmd.Context(), store, catalog, time.Now())
			if err != nil {
				return err
			}
			log.Infow("example data inserted", "entities", n)
			return nil
		},
	}
}

// openPostgres opens the configured PostgreSQL store. Maintenance commands
// have nothing to do on the memory driver.
func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.Store, func(), error) {
	if cfg.Storage.Driver != config.DriverPostgres {
		return nil, nil, fmt.Errorf("storage.driver is %q; this command needs %q", cfg.Storage.Driver, config.DriverPostgres)
	}
	catalog, _, err := newResources()
	if err != nil {
		return nil, nil, err
	}
	store, pool, err := openStore(ctx, cfg, catalog)
	if err != nil {
		return nil, nil, err
	}
	return store.(*postgres.Store), pool.Close, nil
}
