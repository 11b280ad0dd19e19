package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-wsclient/internal/testpki"
)

func newPKICommand(root *rootOptions) *cobra.Command {
	var (
		out      string
		format   string
		password string
	)

	cmd := &cobra.Command{
		Use:   "pki",
		Short: "Generate a throwaway CA with client and server stores",
		Long: `Generate a fresh CA, a server identity for localhost and a client
identity, and write them as a client key store, a server key store and a
trust store holding the CA. The stores are meant for local testing only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := testpki.WriteStores(out, format, password)
			if err != nil {
				return err
			}
			root.logger.Debug("stores written", slog.String("dir", out), slog.String("format", format))

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "client key store: %s\n", paths.ClientKeyStore)
			fmt.Fprintf(w, "server key store: %s\n", paths.ServerKeyStore)
			fmt.Fprintf(w, "trust store:      %s\n", paths.TrustStore)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&format, "format", "PKCS12", "store format (PKCS12, JKS, PEM)")
	cmd.Flags().StringVar(&password, "password", "changeit", "store password")

	return cmd
}
