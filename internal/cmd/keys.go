package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/output"
)

var keysProbe bool

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show the Gemini key pools",
	Long: `List every configured key pool with masked key hints, quota and window.
With --probe one short prompt is sent through each pool to confirm a key works.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := outputTargetFrom(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		registry, err := ailink.NewRegistry(cfg.AILink, ailink.WithRegistryLogger(observability.CLILogger))
		if err != nil {
			return err
		}

		if keysProbe {
			for _, name := range registry.Names() {
				d, err := registry.Dispatcher(name)
				if err != nil {
					return err
				}
				result := d.Dispatch(ctx, "Reply with the single word: ok")
				if result.Served() {
					observability.CLILogger.Info("✅ "+name+" pool answered", zap.String("provider", result.ProviderLabel))
				} else {
					observability.CLILogger.Warn("❌ "+name+" pool did not answer",
						zap.Int("attempts", result.Attempts),
						zap.String("failure", ailink.Classify(result.Err).String()),
						zap.Error(result.Err))
				}
			}
		}

		rendered, err := output.NewFormatter(target.Format).FormatPools(registry.Status())
		if err != nil {
			return err
		}
		return target.write(cmd, rendered)
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	addOutputFlags(keysCmd, false)
	keysCmd.Flags().BoolVar(&keysProbe, "probe", false, "send one test prompt through each pool")
}
