package models

// QoEResult is the output of the QoE Scorer (§4.5), a heuristic composite
// derived purely from the TS analyzer counters and the observed input rate.
// It MUST be reproducible bit-for-bit from its inputs.
type QoEResult struct {
	VideoScore   float64
	AudioScore   float64
	CompositeMOS float64

	VideoActive bool
	AudioActive bool

	VideoBitrateMbps  float64
	AudioBitrateKbps  float64
}
