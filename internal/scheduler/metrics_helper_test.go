package scheduler

import "github.com/asford/jug/internal/telemetry"

func noopMetrics() telemetry.Metrics {
	return telemetry.Metrics{}
}
