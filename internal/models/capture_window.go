package models

import "time"

// Datagram records a single UDP payload's arrival instant, length, and
// leading byte, as observed by the UDP Capture component (§4.2). FirstByte
// is retained (rather than just Bytes) so validity can be judged per
// datagram: a length that happens to be a multiple of 188 proves nothing
// about content on its own.
type Datagram struct {
	ArrivalInstant time.Time
	Bytes          int
	FirstByte      byte
}

// CaptureWindow is the short-lived result of a single UDP Capture pass over
// one input. It is created at the start of a per-input task, mutated only by
// the capture loop itself, and then passed read-only to the analyzers.
type CaptureWindow struct {
	StartInstant   time.Time
	DurationSec    float64
	Datagrams      []Datagram
	TotalBytes     int64
	Payload        []byte
	IsValid        bool
	PacketsLost    int64
}

// PacketsReceived returns the number of datagrams recorded in this window.
func (w *CaptureWindow) PacketsReceived() int {
	return len(w.Datagrams)
}

// BitrateMbps returns the observed input rate in megabits per second, or zero
// when the window carries no duration.
func (w *CaptureWindow) BitrateMbps() float64 {
	if w.DurationSec <= 0 {
		return 0
	}
	return float64(w.TotalBytes*8) / w.DurationSec / 1_000_000
}
