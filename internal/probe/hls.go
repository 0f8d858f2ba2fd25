package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/tvqos/tvqos/internal/hls"
	"github.com/tvqos/tvqos/internal/metrics"
	"github.com/tvqos/tvqos/internal/models"
)

// HLSProbe runs the HLS/HTTP pipeline: fetch and validate the channel's
// master and variant playlists, sample trailing segments, and emit every
// measurement. It is registered for both InputKindHLS and InputKindHTTP,
// since a progressive HTTP input is probed identically to a single-rendition
// HLS channel (§4.6).
type HLSProbe struct {
	validator *hls.Validator
	emitter   *metrics.Emitter
}

// NewHLSProbe creates an HLS probe handler.
func NewHLSProbe(validator *hls.Validator, emitter *metrics.Emitter) *HLSProbe {
	return &HLSProbe{validator: validator, emitter: emitter}
}

// Probe implements scheduler.ProbeHandler.
func (p *HLSProbe) Probe(ctx context.Context, input *models.InputSource) (string, error) {
	channelID := input.ChannelRef
	if channelID == "" {
		channelID = input.Name
	}

	result := p.validator.Validate(ctx, channelID)
	now := time.Now()

	if result.ChannelError != "" {
		p.emitter.EmitChannelError(ctx, channelID, result.ChannelError, now)
		return "", fmt.Errorf("channel %s: %s", channelID, result.ChannelError)
	}

	p.emitter.EmitABRLadder(ctx, channelID, result.Rungs, now)
	for i := range result.Validations {
		p.emitter.EmitPlaylistValidation(ctx, &result.Validations[i], now)
	}
	for i := range result.Samples {
		p.emitter.EmitSegment(ctx, &result.Samples[i], now)
	}

	return fmt.Sprintf("rungs=%d validations=%d samples=%d", len(result.Rungs), len(result.Validations), len(result.Samples)), nil
}
