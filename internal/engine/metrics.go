package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type engineMetrics struct {
	commits      metric.Int64Counter
	drops        metric.Int64Counter
	restarts     metric.Int64Counter
	streamErrors metric.Int64Counter
	translateErr metric.Int64Counter
	retractions  metric.Int64Counter
}

func newEngineMetrics(log *slog.Logger) engineMetrics {
	meter := otel.Meter("github.com/voxlabs/vox-core/engine")
	var m engineMetrics
	var err error
	if m.commits, err = meter.Int64Counter("vox.transcripts.committed",
		metric.WithDescription("Final transcripts committed to a surface")); err != nil {
		log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	m.drops, _ = meter.Int64Counter("vox.jobs.dropped",
		metric.WithDescription("Pending jobs dropped because the target went away"))
	m.restarts, _ = meter.Int64Counter("vox.sessions.restarted",
		metric.WithDescription("Recognition streams restarted within a session"))
	m.streamErrors, _ = meter.Int64Counter("vox.stream.errors",
		metric.WithDescription("Recognition stream errors by kind"))
	m.translateErr, _ = meter.Int64Counter("vox.translation.failures",
		metric.WithDescription("Translation calls that failed and fell back"))
	m.retractions, _ = meter.Int64Counter("vox.interim.retracted",
		metric.WithDescription("Interim spans removed without being committed"))
	return m
}

func (m engineMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
