package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tvqos/tvqos/internal/models"
)

// newPoint is a thin wrapper around the client's point constructor, kept in
// one place so every measurement builder stamps fields/tags the same way.
func newPoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) *write.Point {
	return influxdb2.NewPoint(measurement, tags, fields, at)
}

func inputTags(input *models.InputSource) map[string]string {
	return map[string]string{
		"input_id":   input.ID.String(),
		"input_name": input.Name,
	}
}

func udpProbePoint(input *models.InputSource, window *models.CaptureWindow, errorCount int64, at time.Time) *influxdb2.Point {
	return newPoint("udp_probe_metric", inputTags(input), map[string]any{
		"packets_received": window.PacketsReceived(),
		"bytes_received":   window.TotalBytes,
		"duration_sec":     window.DurationSec,
		"bitrate_mbps":     window.BitrateMbps(),
		"is_valid":         window.IsValid,
		"error_count":      errorCount,
	}, at)
}

func udpProbeErrorPoint(input *models.InputSource, message string, at time.Time) *influxdb2.Point {
	return newPoint("udp_probe_metric", inputTags(input), map[string]any{
		"packets_received": 0,
		"bytes_received":   int64(0),
		"duration_sec":     0.0,
		"bitrate_mbps":     0.0,
		"is_valid":         false,
		"error_count":      int64(0),
		"errors":           message,
	}, at)
}

func tr101290P1Point(input *models.InputSource, r *models.TR101290Result, at time.Time) *influxdb2.Point {
	return newPoint("tr101290_p1", inputTags(input), map[string]any{
		"sync_byte_error":        r.SyncByteError,
		"ts_sync_loss":           r.TSSyncLoss,
		"continuity_count_error": r.ContinuityCountError,
		"pat_error":              r.PATError,
		"pmt_error":              r.PMTError,
		"total_p1_errors":        r.TotalP1Errors(),
	}, at)
}

func tr101290P2Point(input *models.InputSource, r *models.TR101290Result, at time.Time) *influxdb2.Point {
	return newPoint("tr101290_p2", inputTags(input), map[string]any{
		"transport_error":    r.TransportError,
		"pcr_accuracy_error": r.PCRAccuracyError,
		"total_p2_errors":    r.TotalP2Errors(),
	}, at)
}

func tr101290P3Point(input *models.InputSource, r *models.TR101290Result, at time.Time) *influxdb2.Point {
	return newPoint("tr101290_p3", inputTags(input), map[string]any{
		"nit_error":       r.NITError,
		"sdt_error":       r.SDTError,
		"eit_error":       r.EITError,
		"tdt_error":       r.TDTError,
		"cat_error":       r.CATError,
		"total_p3_errors": r.TotalP3Errors(),
	}, at)
}

func tr101290MetadataPoint(input *models.InputSource, r *models.TR101290Result, at time.Time) *influxdb2.Point {
	return newPoint("tr101290_metadata", inputTags(input), map[string]any{
		"total_packets":   r.TotalPackets,
		"pat_received":    r.PATSeen,
		"pmt_received":    r.PMTSeen,
		"pcr_interval_ms": r.PCRIntervalMillis,
	}, at)
}

func mdiPoint(input *models.InputSource, m *models.MDIResult, rateMbps float64, at time.Time) *influxdb2.Point {
	return newPoint("mdi_metrics", inputTags(input), map[string]any{
		"df":                    m.DelayFactorMillis,
		"mlr":                   m.MediaLossRate,
		"jitter_ms":             m.JitterMillis,
		"max_jitter_ms":         m.MaxJitterMillis,
		"inter_arrival_time_ms": m.MeanInterArrivalMillis,
		"buffer_depth":          m.BufferDepthBytes,
		"buffer_max":            m.BufferMaxBytes,
		"buffer_utilization":    m.BufferUtilization,
		"input_rate_mbps":       rateMbps,
		"packets_lost":          m.PacketsLost,
		"packets_out_of_order":  m.PacketsOutOfOrder,
	}, at)
}

func qoePoint(input *models.InputSource, q *models.QoEResult, at time.Time) *influxdb2.Point {
	return newPoint("qoe_metrics", inputTags(input), map[string]any{
		"overall_mos":         q.CompositeMOS,
		"video_quality_score": q.VideoScore,
		"audio_quality_score": q.AudioScore,
		"video_pid_active":    q.VideoActive,
		"audio_pid_active":    q.AudioActive,
		"video_bitrate_mbps":  q.VideoBitrateMbps,
		"audio_bitrate_kbps":  q.AudioBitrateKbps,
	}, at)
}

func abrLadderPoint(channel string, rungs []models.Rung, at time.Time) *influxdb2.Point {
	minKbps, maxKbps := 0, 0
	for i, r := range rungs {
		if i == 0 || r.BandwidthKbps < minKbps {
			minKbps = r.BandwidthKbps
		}
		if r.BandwidthKbps > maxKbps {
			maxKbps = r.BandwidthKbps
		}
	}
	return newPoint("abr_ladder", map[string]string{"channel": channel}, map[string]any{
		"rung_count":       len(rungs),
		"min_bitrate_kbps": minKbps,
		"max_bitrate_kbps": maxKbps,
	}, at)
}

func playlistValidationPoint(v *models.PlaylistValidation, at time.Time) *influxdb2.Point {
	return newPoint("playlist_validation", map[string]string{"channel": v.Channel, "rung": v.RungID}, map[string]any{
		"is_valid":      v.IsValid,
		"duration_sec":  v.AvgSegmentDuration,
		"segment_count": v.SegmentCount,
		"error_count":   len(v.Errors),
	}, at)
}

func segmentPoint(s *models.SegmentSample, at time.Time) *influxdb2.Point {
	return newPoint("segment_metric", map[string]string{"channel": s.Channel, "rung": s.RungID}, map[string]any{
		"segment_number":   s.SegmentNumber,
		"duration_sec":     s.DurationSeconds,
		"size_bytes":       s.SizeBytes,
		"download_time_ms": s.DownloadMillis,
		"http_status":      s.HTTPStatus,
	}, at)
}

func channelErrorPoint(channel, message string, at time.Time) *influxdb2.Point {
	return newPoint("channel_error", map[string]string{"channel": channel}, map[string]any{
		"error_message": message,
	}, at)
}
