package hls

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // content hash is a change detector, not a security primitive (§4.6)
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/internal/models"
	"github.com/tvqos/tvqos/pkg/httpclient"
)

// segmentSampleCount is the number of trailing segments sampled per valid
// rendition (§4.6 — "sample the last two segments").
const segmentSampleCount = 2

// Result is the full outcome of validating one channel's HLS surface: its
// ABR ladder, each rendition's validation, and the segment samples taken
// from the valid renditions.
type Result struct {
	ChannelID    string
	Rungs        []models.Rung
	Validations  []models.PlaylistValidation
	Samples      []models.SegmentSample
	ChannelError string
}

// Validator fetches and validates a channel's master and variant playlists
// through the shared resilient HTTP client, registering one circuit breaker
// per rendition host so a single broken packager host doesn't retry-storm
// others (§4.6).
type Validator struct {
	factory *httpclient.ClientFactory
	logger  *slog.Logger
	cfg     config.HLSConfig
}

// NewValidator creates an HLS Validator.
func NewValidator(factory *httpclient.ClientFactory, cfg config.HLSConfig) *Validator {
	return &Validator{
		factory: factory,
		logger:  slog.Default(),
		cfg:     cfg,
	}
}

// WithLogger sets a custom logger.
func (v *Validator) WithLogger(logger *slog.Logger) *Validator {
	v.logger = logger
	return v
}

// Validate runs the full HLS probe pipeline for one channel: master fetch,
// rendition fetch+validation, and segment sampling for valid renditions.
func (v *Validator) Validate(ctx context.Context, channelID string) *Result {
	result := &Result{ChannelID: channelID}

	masterURL := fmt.Sprintf("%s/live/%s/master.m3u8", v.cfg.PackagerBaseURL, channelID)

	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	body, _, err := v.fetch(fetchCtx, masterURL)
	cancel()
	if err != nil {
		result.ChannelError = err.Error()
		v.logger.Warn("hls master playlist fetch failed",
			slog.String("channel_id", channelID),
			slog.Any("error", err))
		return result
	}

	masterRungs, err := parseMaster(bytes.NewReader(body))
	if err != nil {
		result.ChannelError = err.Error()
		return result
	}

	for _, mr := range masterRungs {
		variantURL := resolveURL(masterURL, mr.URI)
		rung := models.Rung{
			ID:            rungIDFromURI(mr.URI),
			BandwidthKbps: mr.BandwidthKbps,
			Resolution:    mr.Resolution,
			URI:           variantURL,
		}
		result.Rungs = append(result.Rungs, rung)

		validation, samples := v.validateRendition(ctx, channelID, rung)
		result.Validations = append(result.Validations, validation)
		result.Samples = append(result.Samples, samples...)
	}

	return result
}

// validateRendition fetches and validates one rendition's variant playlist,
// sampling its trailing segments when valid (§4.6).
func (v *Validator) validateRendition(ctx context.Context, channelID string, rung models.Rung) (models.PlaylistValidation, []models.SegmentSample) {
	validation := models.PlaylistValidation{Channel: channelID, RungID: rung.ID}

	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	body, _, err := v.fetch(fetchCtx, rung.URI)
	cancel()
	if err != nil {
		validation.Errors = append(validation.Errors, fmt.Sprintf("fetching variant playlist: %v", err))
		return validation, nil
	}

	pl, err := parseVariant(bytes.NewReader(body))
	if err != nil {
		validation.Errors = append(validation.Errors, fmt.Sprintf("parsing variant playlist: %v", err))
		return validation, nil
	}

	validation.SegmentCount = len(pl.Segments)

	if validation.SegmentCount < v.cfg.MinPlaylistSegments {
		validation.Errors = append(validation.Errors, fmt.Sprintf(
			"Too few segments: got %d, need at least %d", validation.SegmentCount, v.cfg.MinPlaylistSegments))
	}

	targetTolerance := v.cfg.TargetSegmentSeconds * (v.cfg.TolerancePercent / 100)
	if math.Abs(pl.TargetDuration-v.cfg.TargetSegmentSeconds) > targetTolerance {
		validation.Errors = append(validation.Errors, fmt.Sprintf(
			"Target duration %.2fs outside tolerance of %.2fs", pl.TargetDuration, v.cfg.TargetSegmentSeconds))
	}

	if validation.SegmentCount > 0 {
		var sum float64
		for _, seg := range pl.Segments {
			sum += seg.Duration
		}
		validation.AvgSegmentDuration = sum / float64(validation.SegmentCount)
		if math.Abs(validation.AvgSegmentDuration-v.cfg.TargetSegmentSeconds) > targetTolerance {
			validation.Errors = append(validation.Errors, fmt.Sprintf(
				"Mean segment duration %.2fs outside tolerance of %.2fs", validation.AvgSegmentDuration, v.cfg.TargetSegmentSeconds))
		}
	}

	if pl.Discontinuity {
		v.logger.Debug("discontinuity observed in variant playlist",
			slog.String("channel_id", channelID), slog.String("rung_id", rung.ID))
	}

	validation.IsValid = len(validation.Errors) == 0
	if !validation.IsValid {
		return validation, nil
	}

	samples := v.sampleTrailingSegments(ctx, channelID, rung, pl.Segments)
	return validation, samples
}

// sampleTrailingSegments fetches and measures the last segmentSampleCount
// segments of a valid rendition.
func (v *Validator) sampleTrailingSegments(ctx context.Context, channelID string, rung models.Rung, segments []variantSegment) []models.SegmentSample {
	start := len(segments) - segmentSampleCount
	if start < 0 {
		start = 0
	}

	var samples []models.SegmentSample
	for _, seg := range segments[start:] {
		segURL := resolveURL(rung.URI, seg.URI)

		fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
		fetchStart := time.Now()
		body, status, err := v.fetch(fetchCtx, segURL)
		downloadMillis := float64(time.Since(fetchStart).Milliseconds())
		cancel()

		sample := models.SegmentSample{
			Channel:         channelID,
			RungID:          rung.ID,
			SegmentNumber:   segmentNumberFromURI(seg.URI),
			DurationSeconds: seg.Duration,
			DownloadMillis:  downloadMillis,
			HTTPStatus:      status,
		}

		if err != nil {
			v.logger.Warn("segment fetch failed",
				slog.String("channel_id", channelID), slog.String("rung_id", rung.ID), slog.Any("error", err))
			samples = append(samples, sample)
			continue
		}

		sample.SizeBytes = int64(len(body))
		sum := md5.Sum(body) //nolint:gosec
		sample.ContentHash = hex.EncodeToString(sum[:])

		if sample.SizeBytes < v.cfg.MinSegmentSizeBytes {
			v.logger.Warn("segment smaller than configured minimum",
				slog.String("channel_id", channelID), slog.Int64("size_bytes", sample.SizeBytes))
		}
		if downloadMillis > v.cfg.MaxDownloadSeconds*1000 {
			v.logger.Warn("segment download exceeded configured maximum",
				slog.String("channel_id", channelID), slog.Float64("download_ms", downloadMillis))
		}
		if status != http.StatusOK {
			v.logger.Warn("segment fetch returned non-200 status",
				slog.String("channel_id", channelID), slog.Int("status", status))
		}

		samples = append(samples, sample)
	}
	return samples
}

// fetch performs a GET through a per-host resilient client and returns the
// full response body and status code.
func (v *Validator) fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	host := hostOf(rawURL)
	client := v.factory.CreateClientForService("hls_" + host)

	resp, err := client.Get(ctx, rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body from %s: %w", rawURL, err)
	}
	return body, resp.StatusCode, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Host
}

// resolveURL resolves a possibly-relative ref against a base URL.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
