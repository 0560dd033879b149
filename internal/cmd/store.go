package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/core/store"
	"github.com/clauselens/clauselens/internal/observability"
)

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	return store.OpenMigrated(ctx, cfg.Store)
}

var storePruneOlderThan time.Duration

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the session and clause cache database",
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		observability.CLILogger.Info("Schema up to date", zap.String("driver", st.Driver()), zap.String("location", storeLocation(cfg)))
		return nil
	},
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document and cached annotation counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		docs, err := st.CountDocuments(ctx)
		if err != nil {
			return err
		}
		annotations, err := st.CountClauseAnnotations(ctx)
		if err != nil {
			return err
		}
		observability.CLILogger.Info("Store: " + storeLocation(cfg))
		observability.CLILogger.Info(fmt.Sprintf("  Documents:           %d", docs), zap.Int("documents", docs))
		observability.CLILogger.Info(fmt.Sprintf("  Cached annotations:  %d", annotations), zap.Int("annotations", annotations))
		return nil
	},
}

var storePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions idle longer than --older-than (default sessions.ttl)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		ttl := storePruneOlderThan
		if ttl <= 0 {
			ttl = cfg.Sessions.TTL
		}
		if ttl <= 0 {
			return fmt.Errorf("no retention set: pass --older-than or configure sessions.ttl")
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.PruneDocuments(ctx, time.Now().UTC().Add(-ttl))
		if err != nil {
			return err
		}
		observability.CLILogger.Info(fmt.Sprintf("Pruned %d sessions older than %s", n, ttl), zap.Int64("pruned", n))
		return nil
	},
}

var storeClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete every cached clause annotation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ClearClauseAnnotations(ctx)
		if err != nil {
			return err
		}
		observability.CLILogger.Info(fmt.Sprintf("Removed %d cached annotations", n), zap.Int64("removed", n))
		return nil
	},
}

func storeLocation(cfg *config.Config) string {
	if cfg.Store.URL != "" {
		return cfg.Store.URL + " (remote)"
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return config.DefaultStorePath()
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeMigrateCmd, storeStatsCmd, storePruneCmd, storeClearCacheCmd)
	storePruneCmd.Flags().DurationVar(&storePruneOlderThan, "older-than", 0, "session age cutoff, e.g. 72h")
}
