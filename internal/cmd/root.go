package cmd

import (
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/server/handlers"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	// closeTrace flushes the provider trace file, when one is open.
	closeTrace = func() {}

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Explain and risk-rate the clauses of legal documents",
	Long: config.AppName + ` splits contracts and policies into clauses, then explains each
clause and rates its risk in English, Hindi and Marathi using Gemini.

Run "` + config.AppName + ` serve" for the HTTP API, or use the document commands
(segment, analyze, chat) directly on files.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeTrace()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so config loading does not emit metrics
	// to stdout. Server mode initializes proper telemetry later.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+config.AppName+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace Gemini requests/responses to NDJSON file")
}

// initConfig sets up the CLI logger, the config file and provider tracing.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)
	config.SetConfigFile(cfgFile)

	if traceFile != "" {
		cleanup, err := driver.EnableTracing(traceFile)
		if err != nil {
			observability.CLILogger.Warn("Failed to enable tracing", zap.Error(err))
			return
		}
		closeTrace = cleanup
		observability.CLILogger.Debug("Provider tracing enabled", zap.String("file", traceFile))
	}
}
