// Package mdi implements the RFC 4445 Media Delay Index calculation: Delay
// Factor, Media Loss Rate, and the jitter/buffer estimates derived from a
// capture window's packet arrival timestamps (§4.4).
package mdi

import (
	"math"
	"time"

	"github.com/tvqos/tvqos/internal/models"
)

// bufferSafetyMargin is the multiplier applied to the estimated buffer depth
// to derive the recommended maximum buffer size (§4.4).
const bufferSafetyMargin = 1.5

// Compute derives an MDIResult from a capture window's arrival timestamps,
// the elapsed capture duration, the observed input rate, and a packets-lost
// signal supplied by the capture layer (always 0 on the pure UDP path in
// this implementation — see models.MDIResult.MediaLossRate).
func Compute(arrivals []time.Time, durationSec float64, rateMbps float64, packetsLost int64) *models.MDIResult {
	result := &models.MDIResult{PacketsLost: packetsLost}

	if len(arrivals) < 2 {
		return result
	}

	interArrivals := make([]float64, 0, len(arrivals)-1)
	for i := 1; i < len(arrivals); i++ {
		ms := arrivals[i].Sub(arrivals[i-1]).Seconds() * 1000
		interArrivals = append(interArrivals, ms)
	}

	mean := meanOf(interArrivals)
	result.MeanInterArrivalMillis = mean

	var sumSquaredDev float64
	var maxDev float64
	for _, v := range interArrivals {
		dev := v - mean
		sumSquaredDev += dev * dev
		if abs := math.Abs(dev); abs > maxDev {
			maxDev = abs
		}
	}

	result.JitterMillis = math.Sqrt(sumSquaredDev / float64(len(interArrivals)))
	result.MaxJitterMillis = maxDev
	result.DelayFactorMillis = maxDev

	if durationSec > 0 {
		result.MediaLossRate = float64(packetsLost) / durationSec
	}

	if rateMbps > 0 {
		rateBytesPerSecond := rateMbps * 1_000_000 / 8
		result.BufferDepthBytes = rateBytesPerSecond * (maxDev / 1000)
		result.BufferMaxBytes = result.BufferDepthBytes * bufferSafetyMargin
		if result.BufferMaxBytes > 0 {
			result.BufferUtilization = result.BufferDepthBytes / result.BufferMaxBytes
		}
	}

	return result
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
