// Package observability holds the process-wide loggers and telemetry system.
package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger writes human-readable lines for CLI commands.
	CLILogger *logging.Logger

	// ServerLogger is the serve-mode logger.
	ServerLogger *logging.Logger
)

// InitCLILogger sets CLILogger; verbose lowers the level to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal("failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger sets ServerLogger. Profile "simple" writes console lines
// for local runs; anything else writes structured JSON with correlation ids.
// The optional namespace becomes a static field on every entry.
func InitServerLogger(serviceName, logLevel, profile string, namespace ...string) {
	cfg := structuredConfig(serviceName, severity(logLevel))
	if strings.EqualFold(strings.TrimSpace(profile), "simple") {
		cfg = simpleConfig(serviceName, severity(logLevel))
	} else if len(namespace) > 0 && namespace[0] != "" {
		cfg.StaticFields = map[string]any{"namespace": namespace[0]}
	}

	logger, err := logging.New(cfg)
	if err != nil {
		fatal("failed to initialize server logger", err)
	}
	ServerLogger = logger
}

func simpleConfig(service, level string) *logging.LoggerConfig {
	return &logging.LoggerConfig{
		Profile:      logging.ProfileSimple,
		DefaultLevel: level,
		Service:      service,
		Environment:  "development",
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "console",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
	}
}

func structuredConfig(service, level string) *logging.LoggerConfig {
	return &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: level,
		Service:      service,
		Environment:  "production",
		Middleware: []logging.MiddlewareConfig{{
			Name:    "correlation",
			Enabled: true,
			Order:   100,
			Config:  map[string]any{},
		}},
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "json",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// severity maps a config level to a gofulmen severity name. Unknown levels
// are INFO.
func severity(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
		return l
	case "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}

// fatal exits with ExitConfigInvalid. Loggers are not available yet, so it
// writes to stderr.
func fatal(msg string, err error) {
	code := foundry.ExitConfigInvalid
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}
