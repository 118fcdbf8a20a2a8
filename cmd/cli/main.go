package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/tickflowgo/internal/app"
	"github.com/vk/tickflowgo/internal/cli"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/gateway/remote"
	"github.com/vk/tickflowgo/internal/hcl"
)

// main is the entrypoint for the tickflowgo application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[0], os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, argv0 string, args []string) error {
	appConfig, shouldExit, err := cli.Parse(argv0, args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors, so we recover here to provide
	// a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(outW, "A critical startup error occurred: %v\n", r)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := remote.Dial(ctx, remote.Options{URL: appConfig.BridgeURL})
	if err != nil {
		return fmt.Errorf("failed to connect to the game client bridge: %w", err)
	}
	defer client.Close()

	// Enforce the configured capability grant at the gateway boundary.
	grant := make([]gateway.Capability, 0, len(appConfig.Capabilities))
	for _, c := range appConfig.Capabilities {
		grant = append(grant, gateway.Capability(c))
	}
	gw, err := gateway.NewStrict(client, grant...)
	if err != nil {
		return err
	}

	// Instantiate the concrete HCL loader to pass to the app.
	loader := hcl.NewLoader()
	tickflowApp := app.NewApp(outW, appConfig, loader, gw, nil)

	return tickflowApp.Run(ctx)
}
