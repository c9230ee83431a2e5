// Command storefront is the terminal client of the storefront API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xenking/kart-storefront/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	if msg, ok := cli.UserMessage(err, verbose); ok {
		_, _ = fmt.Fprintln(os.Stderr, "Error: "+msg)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
