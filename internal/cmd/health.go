package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/clauselens/clauselens/internal/errors"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/server/handlers"
)

var (
	healthURL     string
	healthProbe   string
	healthTimeout time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the health endpoint of a running server",
	Long: `Call /health (or /health/<probe>) on a running server and exit non-zero when
it is not serving. Suitable for container HEALTHCHECK lines.`,
	Run: func(cmd *cobra.Command, args []string) {
		status, checks, err := fetchHealth(cmd.Context(), healthURL, healthProbe, healthTimeout)
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Health check failed",
				errwrap.WrapServiceUnavailable(cmd.Context(), err, "server not healthy"))
			return
		}

		for name, result := range checks {
			observability.CLILogger.Debug("check", zap.String("name", name), zap.String("status", result))
		}
		if status == handlers.StatusDegraded {
			observability.CLILogger.Warn("⚠️  Server degraded", zap.Any("checks", checks))
			return
		}
		observability.CLILogger.Info("✅ Server " + status)
	},
}

// fetchHealth returns the reported status and per-check results.
func fetchHealth(ctx context.Context, baseURL, probe string, timeout time.Duration) (string, map[string]string, error) {
	path := "/health"
	if probe = strings.TrimSpace(probe); probe != "" {
		path += "/" + probe
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	var body handlers.ProbeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return body.Status, body.Checks, nil
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&healthURL, "url", "http://localhost:8080", "server base URL")
	healthCmd.Flags().StringVar(&healthProbe, "probe", "ready", "probe to query: live, ready, startup or empty for aggregate")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "request timeout")
}
