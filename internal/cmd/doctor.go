package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/ailink/prompt"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/core/engine"
	"github.com/clauselens/clauselens/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		log.Info("=== " + config.AppName + " doctor ===")
		log.Info("")
		log.Info("Running diagnostic checks...")
		log.Info("")

		allChecks := true
		const totalChecks = 7

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			log.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			log.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Gofulmen and Crucible
		version := crucible.GetVersion()
		if version.Gofulmen != "" && version.Crucible != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ✅ v%s / v%s", totalChecks, version.Gofulmen, version.Crucible))
		} else {
			log.Error(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ❌ version metadata missing", totalChecks))
			allChecks = false
		}

		// Check 3: Config file
		configPath := config.DefaultConfigPath()
		cfg, cfgErr := config.Load(ctx)
		switch {
		case cfgErr != nil:
			log.Error(fmt.Sprintf("[3/%d] Checking config... ❌ invalid", totalChecks), zap.Error(cfgErr))
			allChecks = false
		case fileExists(configPath):
			log.Info(fmt.Sprintf("[3/%d] Checking config... ✅ %s", totalChecks, configPath))
		default:
			log.Info(fmt.Sprintf("[3/%d] Checking config... ✅ defaults (no file at %s)", totalChecks, configPath))
		}

		// Check 4: Prompts
		if cfgErr == nil {
			prompts, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
			if err == nil {
				err = prompt.Require(prompts, engine.RequiredPrompts...)
			}
			if err != nil {
				log.Error(fmt.Sprintf("[4/%d] Checking prompts... ❌ %v", totalChecks, err))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("[4/%d] Checking prompts... ✅ %d prompts", totalChecks, len(prompts.List())))
			}
		} else {
			log.Warn(fmt.Sprintf("[4/%d] Checking prompts... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 5: Key pools
		if cfgErr == nil {
			if ok := checkKeyPools(cfg, 5, totalChecks); !ok {
				allChecks = false
			}
		} else {
			log.Warn(fmt.Sprintf("[5/%d] Checking key pools... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 6: Database
		switch {
		case cfgErr != nil:
			log.Warn(fmt.Sprintf("[6/%d] Checking database... ⚠️  skipped (config not loaded)", totalChecks))
		case cfg.Store.Memory:
			log.Info(fmt.Sprintf("[6/%d] Checking database... ✅ in-memory sessions", totalChecks))
		default:
			st, err := openStore(ctx, cfg)
			if err != nil {
				log.Error(fmt.Sprintf("[6/%d] Checking database... ❌ cannot open %s", totalChecks, storeLocation(cfg)), zap.Error(err))
				allChecks = false
				break
			}
			docs, _ := st.CountDocuments(ctx)
			cached, _ := st.CountClauseAnnotations(ctx)
			_ = st.Close()
			detail := storeLocation(cfg)
			if info, err := os.Stat(cfg.Store.Path); err == nil && cfg.Store.URL == "" {
				detail += ", " + formatFileSize(info.Size())
			}
			log.Info(fmt.Sprintf("[6/%d] Checking database... ✅ %s (%d documents, %d cached annotations)", totalChecks, detail, docs, cached))
		}

		// Check 7: Environment
		log.Info(fmt.Sprintf("[7/%d] Checking environment... ✅ %s/%s", totalChecks, runtime.GOOS, runtime.GOARCH),
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH))

		log.Info("")
		if allChecks {
			log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", config.AppName))
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("")
		log.Info("=== End Diagnostics ===")
	},
}

// checkKeyPools reports whether every configured pool has keys.
func checkKeyPools(cfg *config.Config, step, total int) bool {
	log := observability.CLILogger
	names := make([]string, 0, len(cfg.AILink.Pools))
	for name := range cfg.AILink.Pools {
		names = append(names, name)
	}
	sort.Strings(names)

	ok := true
	var summary []string
	for _, name := range names {
		pool := cfg.AILink.Pools[name]
		kp, err := ailink.NewKeyPoolFromEnv(name, pool.Env)
		if err != nil {
			log.Error(fmt.Sprintf("[%d/%d] Checking key pools... ❌ %s: %s has no keys", step, total, name, pool.Env))
			log.Info(fmt.Sprintf("       Set %s to a comma-separated list of Gemini API keys.", pool.Env))
			ok = false
			continue
		}
		summary = append(summary, fmt.Sprintf("%s=%d", name, kp.Size()))
	}
	if ok {
		log.Info(fmt.Sprintf("[%d/%d] Checking key pools... ✅ %s", step, total, strings.Join(summary, ", ")))
	}
	return ok
}

var doctorInitForce bool

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig()), 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:    %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if dataDir != "" {
			log.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			log.Info("  Data directory: (not resolved)")
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return nil
		}
		log.Info("  Database:       " + storeLocation(cfg))

		log.Info("")
		log.Info("Environment:")
		for _, name := range []string{"GEMINI_KEYS", "GEMINI_KEYS_CHAT", config.EnvPrefix + "ADMIN_TOKEN"} {
			log.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}
		return nil
	},
}

var (
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath, _ := filepath.Abs(cfg.Store.Path)
			for _, path := range []string{absPath, absPath + "-wal", absPath + "-shm"} {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove database: %w", err)
				}
			}
			observability.CLILogger.Info("Database removed", zap.String("path", absPath))
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		if _, err := config.Load(cmd.Context()); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func buildInitConfig() string {
	lines := []string{
		"# " + config.AppName + " config - created by '" + config.AppName + " doctor init'",
		"server:",
		"  host: localhost",
		"  port: 8080",
		"ailink:",
		"  model: " + ailink.DefaultModel,
		"  pools:",
		"    analysis:",
		"      env: GEMINI_KEYS       # comma-separated API keys",
		"      quota: " + strconv.Itoa(ailink.DefaultQuota),
		"      window: " + ailink.DefaultWindow.String(),
		"    chat:",
		"      env: GEMINI_KEYS_CHAT",
		"      quota: " + strconv.Itoa(ailink.DefaultQuota),
		"      window: " + ailink.DefaultWindow.String(),
		"sessions:",
		"  ttl: 24h",
		"http_rate_limit:",
		"  enabled: true",
		"  rps: 5",
		"  burst: 20",
	}
	return strings.Join(lines, "\n") + "\n"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
