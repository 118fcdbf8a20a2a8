// Package cli parses the command line and launch identity into an app config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/tickflowgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// argv0 is the invoked binary name; a "tickflow-<flow>" alias preselects that
// flow type.
func Parse(argv0 string, args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("tickflowgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
TickFlowGo - Cooperative game-client automation flows.

Usage:
  tickflowgo [options] [PROFILE_PATH]

Arguments:
  PROFILE_PATH
    Path to a single .hcl profile file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	profilesFlag := flagSet.String("profiles", "", "Path to the profile file or directory.")
	pFlag := flagSet.String("p", "", "Path to the profile file or directory (shorthand).")
	flowFlag := flagSet.String("flow", "", "Run only profiles of this flow type. Empty runs all.")
	bridgeFlag := flagSet.String("bridge-url", "http://127.0.0.1:5000/socket.io", "Socket.io endpoint of the game client bridge.")
	capsFlag := flagSet.String("capabilities", "", "Comma-separated gateway capability grant. Empty grants all.")
	dataDirFlag := flagSet.String("data-dir", "data", "Directory for persisted settings records.")
	modulesPathFlag := flagSet.String("modules-path", "modules", "Path to the directory containing flow manifests.")
	tickFlag := flagSet.Int("tick-interval-ms", 100, "Pacing of the cooperative loop in milliseconds.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *profilesFlag != "" {
		path = *profilesFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Profile path determined.", "path", path)

	if path == "" {
		slog.Debug("No profile path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	// An explicit -flow wins over the launch identity.
	flowType := *flowFlag
	if flowType == "" {
		flowType = FlowFromLaunchName(argv0)
	}
	slog.Debug("CLI parameter validation complete.")

	var caps []string
	if trimmed := strings.TrimSpace(*capsFlag); trimmed != "" {
		for _, c := range strings.Split(trimmed, ",") {
			caps = append(caps, strings.TrimSpace(c))
		}
	}

	config, err := app.NewConfig(app.Config{
		ProfilePath:     path,
		ModulesPath:     *modulesPathFlag,
		DataDir:         *dataDirFlag,
		Flow:            flowType,
		BridgeURL:       *bridgeFlag,
		Capabilities:    caps,
		TickIntervalMs:  *tickFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
