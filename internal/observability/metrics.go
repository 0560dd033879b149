package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

const fallbackMetricsPort = 9090

var (
	// TelemetrySystem receives every metric; nil means telemetry is off.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the metrics scrape endpoint.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 picks a free one) and
// routes TelemetrySystem to it. Metric names get namespace, or serviceName
// when no namespace is given, as prefix.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if port < 0 {
		port = 0
	}
	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(prefix, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return err
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	metricsPort = port
	if bound, err := portOf(exporter.GetAddr()); err == nil {
		metricsPort = bound
	} else if port == 0 {
		metricsPort = fallbackMetricsPort
	}
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// StopMetrics stops the exporter and turns telemetry off.
func StopMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	metricsPort = 0
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the port the exporter listens on, or 0 before
// InitMetrics.
func GetMetricsPort() int {
	return metricsPort
}

func portOf(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}
