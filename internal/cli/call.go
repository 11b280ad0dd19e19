package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wsclient/internal/config"
	"github.com/sirosfoundation/go-wsclient/internal/countries"
	"github.com/sirosfoundation/go-wsclient/internal/retry"
	"github.com/sirosfoundation/go-wsclient/pkg/tlsclient"
	"github.com/sirosfoundation/go-wsclient/pkg/transport"
	"github.com/sirosfoundation/go-wsclient/pkg/wsclient"
)

type callOptions struct {
	endpoint  string
	transport string
	style     string
	username  string
	password  string
	retries   uint
	timeout   time.Duration
	gzip      bool
}

func newCallCommand(root *rootOptions) *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call <country>",
		Short: "Look up a country on the country service",
		Example: `  wsclient call Spain --endpoint http://localhost:8080/ws
  wsclient call Poland --config secure.yaml --style soap11`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			flags := cmd.Flags()
			if flags.Changed("endpoint") {
				cfg.Client.Endpoint = opts.endpoint
			}
			if flags.Changed("transport") {
				cfg.Client.Transport = opts.transport
			}
			if flags.Changed("style") {
				cfg.Client.MessageStyle = opts.style
			}
			if flags.Changed("username") {
				cfg.Auth.Username = opts.username
			}
			if flags.Changed("password") {
				cfg.Auth.Password = opts.password
			}
			if flags.Changed("retries") {
				cfg.Client.Retries = opts.retries
			}
			if flags.Changed("timeout") {
				cfg.Client.Timeout = opts.timeout
			}
			if flags.Changed("gzip") {
				cfg.Client.Compress = opts.gzip
			}
			if cfg.Client.Endpoint == "" {
				return fmt.Errorf("no endpoint configured; use --endpoint or client.endpoint")
			}

			resp, err := callCountry(cmd.Context(), cfg, root.logger, args[0])
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(resp.Country)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.endpoint, "endpoint", "e", "", "service endpoint URL")
	cmd.Flags().StringVar(&opts.transport, "transport", config.TransportPlain, "transport mode (plain, secure)")
	cmd.Flags().StringVar(&opts.style, "style", "pox", "message style (pox, soap11)")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "basic auth username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "basic auth password")
	cmd.Flags().UintVar(&opts.retries, "retries", 0, "retries on refused connections, timeouts and 502/503/504")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "round trip timeout")
	cmd.Flags().BoolVar(&opts.gzip, "gzip", false, "gzip the request body")

	return cmd
}

// newSender builds the configured plain or secure request sender
func newSender(cfg *config.Config, logger *slog.Logger) (*transport.Sender, error) {
	senderCfg := transport.DefaultSenderConfig()
	senderCfg.Timeout = cfg.Client.Timeout
	senderCfg.ConnectTimeout = cfg.Client.ConnectTimeout
	senderCfg.Logger = logger

	switch cfg.Client.Transport {
	case config.TransportPlain:
	case config.TransportSecure:
		key, err := cfg.TLS.KeyStore.Load()
		if err != nil {
			return nil, err
		}
		trust, err := cfg.TLS.TrustStore.Load()
		if err != nil {
			return nil, err
		}

		tlsOpts := []tlsclient.Option{tlsclient.WithLogger(logger)}
		if cfg.TLS.ServerName != "" {
			tlsOpts = append(tlsOpts, tlsclient.WithServerName(cfg.TLS.ServerName))
		}
		if cfg.TLS.KeyAlias != "" {
			tlsOpts = append(tlsOpts, tlsclient.WithKeyAlias(cfg.TLS.KeyAlias))
		}
		tlsCtx, err := tlsclient.Build(key, trust, tlsOpts...)
		if err != nil {
			return nil, err
		}
		senderCfg.TLS = tlsCtx
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Client.Transport)
	}

	return transport.NewSender(senderCfg), nil
}

func callCountry(ctx context.Context, cfg *config.Config, logger *slog.Logger, name string) (*countries.GetCountryResponse, error) {
	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer sender.CloseIdleConnections()

	factory, err := wsclient.FactoryFor(cfg.Client.MessageStyle)
	if err != nil {
		return nil, err
	}
	m, err := countries.NewMarshaller()
	if err != nil {
		return nil, err
	}
	client := wsclient.New(sender, m, wsclient.WithMessageFactory(factory), wsclient.WithLogger(logger))

	var sendOpts []transport.SendOption
	if cfg.Auth.Username != "" {
		sendOpts = append(sendOpts, transport.WithCredentials(transport.Credentials{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		}))
	}

	if cfg.Client.Compress {
		sendOpts = append(sendOpts, transport.WithCompression())
	}

	policy := retry.DefaultPolicy(cfg.Client.Retries)
	policy.Logger = logger
	return retry.Do(ctx, policy, func(ctx context.Context) (*countries.GetCountryResponse, error) {
		return wsclient.Invoke[countries.GetCountryResponse](ctx, client, cfg.Client.Endpoint,
			&countries.GetCountryRequest{Name: name}, sendOpts...)
	})
}
