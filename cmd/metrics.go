package cmd

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/askcsv/internal/config"
	"github.com/KaramelBytes/askcsv/internal/metrics"
	"github.com/KaramelBytes/askcsv/internal/metrics/datadog"
)

// startMetrics installs the Datadog backend when enabled. The returned stop
// func flushes and restores the no-op backend.
func startMetrics(ctx context.Context, c *cfgpkg.Global, log *zap.Logger) func() {
	if !c.DatadogEnabled {
		return func() {}
	}
	b, err := datadog.NewBackend(ctx, datadog.Options{Tags: datadog.ParseTagsCSV(c.DatadogTags)})
	if err != nil {
		log.Warn("metrics disabled", zap.Error(err))
		return func() {}
	}
	metrics.SetBackend(b)
	log.Debug("datadog metrics enabled")
	return func() {
		if err := b.Close(); err != nil {
			log.Warn("final metrics flush failed", zap.Error(err))
		}
		metrics.SetBackend(nil)
	}
}
