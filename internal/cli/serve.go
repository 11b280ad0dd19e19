package cli

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-wsclient/internal/config"
	"github.com/sirosfoundation/go-wsclient/internal/countries"
	"github.com/sirosfoundation/go-wsclient/pkg/transport"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sample country service",
		Long: `Run the sample country service until interrupted.

With server.tls.enabled the service only accepts HTTPS connections from
clients presenting a certificate issued by a CA in server.tls.trustStore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg.Server
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			opts, err := serverOptions(cfg, root.logger)
			if err != nil {
				return err
			}
			srv, err := countries.Start(opts)
			if err != nil {
				return err
			}
			root.logger.Info("country service started", slog.String("url", srv.URL()))
			fmt.Fprintln(cmd.OutOrStdout(), srv.URL())

			select {
			case <-cmd.Context().Done():
				root.logger.Info("shutting down")
				return srv.Close()
			case err := <-srv.Done():
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")

	return cmd
}

func serverOptions(cfg config.ServerConfig, logger *slog.Logger) (countries.Options, error) {
	opts := countries.Options{
		Addr:       cfg.Addr,
		Realm:      cfg.Realm,
		Repository: countries.DefaultRepository(),
		Logger:     logger,
	}

	if cfg.TLS.Enabled {
		key, err := cfg.TLS.KeyStore.Load()
		if err != nil {
			return opts, err
		}
		trust, err := cfg.TLS.TrustStore.Load()
		if err != nil {
			return opts, err
		}
		if opts.TLS, err = countries.TLSConfig(key, trust); err != nil {
			return opts, err
		}
	}

	if cfg.BasicAuth.Username != "" {
		opts.BasicAuth = &transport.Credentials{
			Username: cfg.BasicAuth.Username,
			Password: cfg.BasicAuth.Password,
		}
	}

	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Registry = reg
	}

	return opts, nil
}
