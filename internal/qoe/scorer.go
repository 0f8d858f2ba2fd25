// Package qoe implements the QoE Scorer: a heuristic composite quality score
// derived from the TS analyzer's TR 101 290 counters and the observed input
// rate (§4.5). It is declared as a heuristic, not a perceptual metric, and
// must be reproducible bit-for-bit from its inputs.
package qoe

import (
	"github.com/tvqos/tvqos/internal/models"
)

const (
	packetSize = 188
	syncByte   = 0x47

	videoPIDLow  = 0x100
	videoPIDHigh = 0x1FF
	audioPIDLow  = 0x200
	audioPIDHigh = 0x2FF

	startingScore = 5.0
	floorScore    = 1.0

	videoSyncPenaltyCap       = 2.0
	videoContinuityPenaltyCap = 1.5
	videoPMTPenaltyCap        = 1.0
	audioContinuityPenaltyCap = 1.5

	compositeVideoWeight = 0.7
	compositeAudioWeight = 0.3

	videoRateShare = 0.85
	audioRateShare = 0.15
)

// Score computes a QoEResult from the TS analyzer's counters and the
// observed input rate, scanning the raw capture buffer for elementary video
// and audio PIDs to decide which bitrate split fields apply.
func Score(buf []byte, ts *models.TR101290Result, rateMbps float64) *models.QoEResult {
	result := &models.QoEResult{}
	result.VideoActive, result.AudioActive = scanActiveStreams(buf)

	result.VideoScore = clampFloor(startingScore-
		min(float64(ts.SyncByteError)*0.5, videoSyncPenaltyCap)-
		min(float64(ts.ContinuityCountError)*0.1, videoContinuityPenaltyCap)-
		min(float64(ts.PMTError)*0.3, videoPMTPenaltyCap), floorScore)

	result.AudioScore = clampFloor(startingScore-
		min(float64(ts.ContinuityCountError)*0.1, audioContinuityPenaltyCap), floorScore)

	result.CompositeMOS = compositeVideoWeight*result.VideoScore + compositeAudioWeight*result.AudioScore

	if result.VideoActive {
		result.VideoBitrateMbps = videoRateShare * rateMbps
	}
	if result.AudioActive {
		result.AudioBitrateKbps = audioRateShare * rateMbps * 1000
	}

	return result
}

// scanActiveStreams walks buf in 188-byte strides and reports whether any
// packet's PID falls in the conventional elementary video or audio ranges.
func scanActiveStreams(buf []byte) (videoActive, audioActive bool) {
	for offset := 0; offset+packetSize <= len(buf); offset += packetSize {
		pkt := buf[offset : offset+packetSize]
		if pkt[0] != syncByte {
			continue
		}
		pid := (int(pkt[1]&0x1F) << 8) | int(pkt[2])
		if pid >= videoPIDLow && pid <= videoPIDHigh {
			videoActive = true
		}
		if pid >= audioPIDLow && pid <= audioPIDHigh {
			audioActive = true
		}
	}
	return
}

func clampFloor(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}
