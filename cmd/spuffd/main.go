// Command spuffd is the lightweight HTTP agent that runs on every
// provisioned VM: it serves status/metrics/exec endpoints to the
// controller over an SSH-forwarded port, runs the declarative setup
// executor once the asynchronous bootstrap phase hands off to it, and
// watches for idleness.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spuff-dev/spuff/internal/agent"
	"github.com/spuff-dev/spuff/internal/logx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spuffd:", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := logx.New("spuffd", logx.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := agent.ConfigFromEnv()

	a, err := agent.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize agent: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}
