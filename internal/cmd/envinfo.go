package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, effective configuration and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== ClauseLens Environment Information ===")
		log.Info("")
		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + config.DefaultConfigPath())
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info("  Log Profile:    " + cfg.Logging.Profile)
		switch {
		case cfg.Store.Memory:
			log.Info("  Store:          in-memory")
		case strings.TrimSpace(cfg.Store.URL) != "":
			log.Info("  Store:          " + cfg.Store.URL)
		default:
			log.Info("  Store:          " + cfg.Store.Path)
		}
		log.Info("  Session TTL:    " + cfg.Sessions.TTL.String())
		log.Info(fmt.Sprintf("  Metrics Port:   %d (enabled: %t)", cfg.Metrics.Port, cfg.Metrics.Enabled))
		log.Info(fmt.Sprintf("  HTTP Limit:     %.1f rps, burst %d (enabled: %t)",
			cfg.HTTPRateLimit.RPS, cfg.HTTPRateLimit.Burst, cfg.HTTPRateLimit.Enabled))
		log.Info(fmt.Sprintf("  Clause Length:  %d-%d", cfg.Segment.MinClauseLength, cfg.Segment.MaxClauseLength))
		log.Info("")

		log.Info("Gemini:")
		log.Info("  Base URL:       " + cfg.AILink.BaseURL)
		log.Info("  Model:          " + cfg.AILink.Model)
		log.Info("  Timeout:        " + cfg.AILink.DefaultTimeout.String())
		if cfg.AILink.PromptsDir != "" {
			log.Info("  Prompts Dir:    " + cfg.AILink.PromptsDir)
		}

		names := make([]string, 0, len(cfg.AILink.Pools))
		for name := range cfg.AILink.Pools {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pool := cfg.AILink.Pools[name]
			log.Info(fmt.Sprintf("  Pool %-9s  %s %s, quota %d per %s",
				name+":", pool.Env, envStatus(pool.Env), pool.Quota, pool.Window))
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
