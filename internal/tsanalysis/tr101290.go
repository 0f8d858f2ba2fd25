// Package tsanalysis implements the TS Packet Analyzer: a single-pass, pure
// function over a captured MPEG-2 Transport Stream byte buffer that computes
// a subset of the ETSI TR 101 290 quality counters (§4.3). It never returns
// an error on malformed input — structural problems become counter
// increments, not exceptions.
package tsanalysis

import (
	"math"

	"github.com/tvqos/tvqos/internal/models"
)

// maxPCRIntervalMillis is the threshold above which a PCR interval counts as
// a §4.3 P2 accuracy error.
const maxPCRIntervalMillis = 40.0

// Analyze walks buf in 188-byte strides and computes the TR 101 290 counters.
// A trailing partial packet (len(buf) not a multiple of 188) is ignored.
func Analyze(buf []byte) *models.TR101290Result {
	result := &models.TR101290Result{}
	lastCC := make(map[int]int)
	var pcrTimestamps []float64

	for offset := 0; offset+packetSize <= len(buf); offset += packetSize {
		pkt := buf[offset : offset+packetSize]
		result.TotalPackets++

		if pkt[0] != syncByte {
			result.SyncByteError++
			result.TSSyncLoss++
			continue
		}

		h := decodePacketHeader(pkt)

		if h.transportError {
			result.TransportError++
		}

		if h.pid != nullPacketPID && (h.adaptationField == 1 || h.adaptationField == 3) {
			if prev, ok := lastCC[h.pid]; ok {
				expected := (prev + 1) % 16
				if h.continuityCounter != expected {
					result.ContinuityCountError++
				}
			}
			lastCC[h.pid] = h.continuityCounter
		}

		if h.pid == patPID {
			result.PATSeen = true
		}

		if h.pid >= 0x0010 && h.pid <= 0x1FFE && h.payloadStart && len(h.payload) > 0 && h.payload[0] == pmtTableID {
			result.PMTSeen = true
		}

		if h.hasPCR {
			pcrTimestamps = append(pcrTimestamps, h.pcrMillis)
		}
	}

	if !result.PATSeen {
		result.PATError = 1
	}
	if !result.PMTSeen {
		result.PMTError = 1
	}

	result.PCRIntervalMillis = pcrIntervalStats(pcrTimestamps, &result.PCRAccuracyError)

	return result
}

// pcrIntervalStats computes the mean consecutive PCR interval in
// milliseconds and increments accuracyErrors for each interval exceeding
// maxPCRIntervalMillis.
func pcrIntervalStats(timestamps []float64, accuracyErrors *int64) float64 {
	if len(timestamps) < 2 {
		return 0
	}

	var sum float64
	for i := 1; i < len(timestamps); i++ {
		interval := timestamps[i] - timestamps[i-1]
		sum += interval
		if math.Abs(interval) > maxPCRIntervalMillis {
			*accuracyErrors++
		}
	}
	return sum / float64(len(timestamps)-1)
}
