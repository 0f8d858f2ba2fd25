package models

// TR101290Result is the output of the TS Packet Analyzer (§4.3): a single-pass
// pure function over a captured byte buffer. All counts are non-negative and
// saturate at the native integer width within a normal analysis.
type TR101290Result struct {
	// Priority 1 (ETSI TR 101 290 §5.2.1)
	SyncByteError       int64
	TSSyncLoss          int64
	ContinuityCountError int64
	PATError            int64
	PMTError            int64

	// Priority 2 (ETSI TR 101 290 §5.2.2)
	TransportError   int64
	PCRAccuracyError int64

	// Priority 3 counters are declared behavior, always zero: the spec treats
	// NIT/SDT/EIT/TDT/CAT as "not received" rather than parsing full DVB SI.
	NITError int64
	SDTError int64
	EITError int64
	TDTError int64
	CATError int64

	TotalPackets      int64
	PATSeen           bool
	PMTSeen           bool
	PCRIntervalMillis float64
}

// TotalP1Errors sums the Priority 1 counters.
func (r *TR101290Result) TotalP1Errors() int64 {
	return r.SyncByteError + r.TSSyncLoss + r.ContinuityCountError + r.PATError + r.PMTError
}

// TotalP2Errors sums the Priority 2 counters.
func (r *TR101290Result) TotalP2Errors() int64 {
	return r.TransportError + r.PCRAccuracyError
}

// TotalP3Errors sums the Priority 3 counters (always zero; see field doc).
func (r *TR101290Result) TotalP3Errors() int64 {
	return r.NITError + r.SDTError + r.EITError + r.TDTError + r.CATError
}
