package models

// SegmentSample is a single sampled HLS media segment fetch (§4.6), recording
// the timing, size, and content hash used for availability/latency checks.
type SegmentSample struct {
	Channel         string
	RungID          string
	SegmentNumber   int
	DurationSeconds float64
	SizeBytes       int64
	DownloadMillis  float64
	HTTPStatus      int
	ContentHash     string
}
