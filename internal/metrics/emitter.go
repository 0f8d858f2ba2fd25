// Package metrics implements the Metric Emitter (§4.8): a thin, best-effort
// sink that writes every measurement in §6's table to a time-series backend.
// A write failure is logged and never aborts the probe task that produced it.
package metrics

import (
	"context"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/internal/models"
)

// Emitter writes monitoring measurements to InfluxDB using a synchronous,
// blocking write API: each probe task emits its own points and waits for
// them, rather than batching across concurrent inputs, so a slow or failing
// sink cannot silently drop another input's points out of a shared buffer.
type Emitter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// NewEmitter builds an Emitter from MetricsConfig. A blank Endpoint yields a
// disabled Emitter (every Emit* call is a no-op), which keeps the component
// usable in environments with no configured metrics sink.
func NewEmitter(cfg config.MetricsConfig) *Emitter {
	if cfg.Endpoint == "" {
		return &Emitter{logger: slog.Default()}
	}

	opts := influxdb2.DefaultOptions().SetMaxRetries(uint(cfg.RetryMax))
	client := influxdb2.NewClientWithOptions(cfg.Endpoint, cfg.Token, opts)
	return &Emitter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (e *Emitter) WithLogger(logger *slog.Logger) *Emitter {
	e.logger = logger
	return e
}

// Close releases the underlying HTTP client's resources. Safe to call on a
// disabled Emitter.
func (e *Emitter) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

func (e *Emitter) enabled() bool {
	return e.writeAPI != nil
}

func (e *Emitter) write(ctx context.Context, measurement string, p *write.Point) {
	if !e.enabled() {
		return
	}
	if err := e.writeAPI.WritePoint(ctx, p); err != nil {
		e.logger.Warn("metric write failed",
			slog.String("measurement", measurement), slog.Any("error", err))
	}
}

// EmitUDPProbe writes the udp_probe_metric point for one capture window.
func (e *Emitter) EmitUDPProbe(ctx context.Context, input *models.InputSource, window *models.CaptureWindow, errorCount int64, at time.Time) {
	e.write(ctx, "udp_probe_metric", udpProbePoint(input, window, errorCount, at))
}

// EmitUDPProbeError writes a zeroed udp_probe_metric point carrying message
// in its errors field, for capture failures (URL parse, socket bind/join)
// that never produce a CaptureWindow to measure (§4.2).
func (e *Emitter) EmitUDPProbeError(ctx context.Context, input *models.InputSource, message string, at time.Time) {
	e.write(ctx, "udp_probe_metric", udpProbeErrorPoint(input, message, at))
}

// EmitTR101290 writes the four TR 101 290 points (P1, P2, P3, metadata) for
// one analysis result.
func (e *Emitter) EmitTR101290(ctx context.Context, input *models.InputSource, r *models.TR101290Result, at time.Time) {
	e.write(ctx, "tr101290_p1", tr101290P1Point(input, r, at))
	e.write(ctx, "tr101290_p2", tr101290P2Point(input, r, at))
	e.write(ctx, "tr101290_p3", tr101290P3Point(input, r, at))
	e.write(ctx, "tr101290_metadata", tr101290MetadataPoint(input, r, at))
}

// EmitMDI writes the mdi_metrics point.
func (e *Emitter) EmitMDI(ctx context.Context, input *models.InputSource, m *models.MDIResult, rateMbps float64, at time.Time) {
	e.write(ctx, "mdi_metrics", mdiPoint(input, m, rateMbps, at))
}

// EmitQoE writes the qoe_metrics point.
func (e *Emitter) EmitQoE(ctx context.Context, input *models.InputSource, q *models.QoEResult, at time.Time) {
	e.write(ctx, "qoe_metrics", qoePoint(input, q, at))
}

// EmitABRLadder writes the abr_ladder point summarizing a channel's master
// playlist variants.
func (e *Emitter) EmitABRLadder(ctx context.Context, channel string, rungs []models.Rung, at time.Time) {
	e.write(ctx, "abr_ladder", abrLadderPoint(channel, rungs, at))
}

// EmitPlaylistValidation writes the playlist_validation point for one
// variant rung.
func (e *Emitter) EmitPlaylistValidation(ctx context.Context, v *models.PlaylistValidation, at time.Time) {
	e.write(ctx, "playlist_validation", playlistValidationPoint(v, at))
}

// EmitSegment writes the segment_metric point for one sampled segment.
func (e *Emitter) EmitSegment(ctx context.Context, s *models.SegmentSample, at time.Time) {
	e.write(ctx, "segment_metric", segmentPoint(s, at))
}

// EmitChannelError writes the channel_error point for a channel-level
// failure (e.g. master playlist unreachable).
func (e *Emitter) EmitChannelError(ctx context.Context, channel, message string, at time.Time) {
	e.write(ctx, "channel_error", channelErrorPoint(channel, message, at))
}
