// Package probe wires the per-kind probe pipelines together: capture,
// analysis, scoring, metric emission, and (for UDP inputs) the snapshot
// pass-through, implementing scheduler.ProbeHandler for each input kind
// dispatched by the Executor (§4.1, §9).
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/tvqos/tvqos/internal/capture"
	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/internal/mdi"
	"github.com/tvqos/tvqos/internal/metrics"
	"github.com/tvqos/tvqos/internal/models"
	"github.com/tvqos/tvqos/internal/qoe"
	"github.com/tvqos/tvqos/internal/snapshot"
	"github.com/tvqos/tvqos/internal/tsanalysis"
)

// UDPProbe runs the MPEGTS_UDP pipeline: capture the transport stream,
// analyze it for TR 101 290 errors, compute MDI/QoE, emit every measurement,
// and hand off to the Snapshot Coordinator for valid windows.
type UDPProbe struct {
	cfg      config.CaptureConfig
	emitter  *metrics.Emitter
	snapshot *snapshot.Coordinator
}

// NewUDPProbe creates a UDP probe handler.
func NewUDPProbe(cfg config.CaptureConfig, emitter *metrics.Emitter, snap *snapshot.Coordinator) *UDPProbe {
	return &UDPProbe{cfg: cfg, emitter: emitter, snapshot: snap}
}

// Probe implements scheduler.ProbeHandler.
func (p *UDPProbe) Probe(ctx context.Context, input *models.InputSource) (string, error) {
	window, err := capture.Capture(ctx, input.URL, capture.Options{
		Timeout:    p.cfg.UDPTimeout,
		MinPackets: p.cfg.MinTSPackets,
		BufferCap:  int64(p.cfg.BufferCap),
	})
	if err != nil {
		p.emitter.EmitUDPProbeError(ctx, input, err.Error(), time.Now())
		return "", fmt.Errorf("capturing udp input: %w", err)
	}

	ts := tsanalysis.Analyze(window.Payload)

	arrivals := make([]time.Time, len(window.Datagrams))
	for i, d := range window.Datagrams {
		arrivals[i] = d.ArrivalInstant
	}
	rateMbps := window.BitrateMbps()
	mdiResult := mdi.Compute(arrivals, window.DurationSec, rateMbps, window.PacketsLost)
	qoeResult := qoe.Score(window.Payload, ts, rateMbps)

	now := time.Now()
	p.emitter.EmitUDPProbe(ctx, input, window, ts.TotalP1Errors()+ts.TotalP2Errors(), now)
	p.emitter.EmitTR101290(ctx, input, ts, now)
	p.emitter.EmitMDI(ctx, input, mdiResult, rateMbps, now)
	p.emitter.EmitQoE(ctx, input, qoeResult, now)

	if window.IsValid {
		p.snapshot.Maybe(ctx, input)
	}

	return fmt.Sprintf("packets=%d valid=%t mos=%.2f", window.PacketsReceived(), window.IsValid, qoeResult.CompositeMOS), nil
}
