// wsclient calls XML web services over plain HTTP or mutual TLS and runs
// the sample country service.
//
// Usage:
//
//	wsclient pki --out ./pki
//	wsclient serve --config server.yaml
//	wsclient call Spain --config client.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirosfoundation/go-wsclient/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
