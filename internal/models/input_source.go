package models

// InputKind represents the probe flavor an InputSource is monitored with.
type InputKind string

const (
	// InputKindMPEGTSUDP is a UDP multicast/unicast MPEG-2 Transport Stream input.
	InputKindMPEGTSUDP InputKind = "MPEGTS_UDP"
	// InputKindHLS is an HLS (RFC 8216) adaptive-bitrate input.
	InputKindHLS InputKind = "HLS"
	// InputKindHTTP is a generic progressive HTTP input, probed via the HLS path.
	InputKindHTTP InputKind = "HTTP"
)

// InputSource is a monitored stream input, owned by the external configuration
// store. The core holds only short-lived copies refreshed each cycle.
type InputSource struct {
	BaseModel

	// Name is a user-friendly identifier, surfaced on every metric point.
	Name string `gorm:"not null;size:255" json:"name"`

	// URL is the source address: udp://host:port for MPEGTS_UDP, an HLS master
	// manifest URL for HLS, or an HTTP playback URL for HTTP.
	URL string `gorm:"not null;size:2048" json:"url"`

	// Kind selects the probe flavor dispatched by the scheduler.
	Kind InputKind `gorm:"not null;size:20" json:"kind"`

	// Port is the UDP listen port for MPEGTS_UDP inputs; unused otherwise.
	Port int `gorm:"default:0" json:"port,omitempty"`

	// ChannelRef identifies the logical channel this input feeds, used as the
	// `channel` tag on HLS-path metric points.
	ChannelRef string `gorm:"size:255" json:"channel_ref,omitempty"`

	// ProbeRef is an opaque reference to the probe template that produced this
	// input's configuration; carried through for operator traceability.
	ProbeRef string `gorm:"size:255" json:"probe_ref,omitempty"`

	// IsPrimary marks the preferred input among redundant feeds for the same
	// channel; advisory only, the scheduler treats all enabled inputs alike.
	IsPrimary *bool `gorm:"default:false" json:"is_primary"`

	// Enabled gates scheduling; disabled inputs are never enumerated.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// SnapshotPath is the last frame-grabber artifact path written back by the
	// Snapshot Coordinator (§4.7).
	SnapshotPath string `gorm:"size:2048" json:"snapshot_path,omitempty"`

	// LastSnapshotAt is the wall-clock instant of the last successful snapshot.
	LastSnapshotAt *Time `json:"last_snapshot_at,omitempty"`
}

// TableName returns the table name for InputSource.
func (InputSource) TableName() string {
	return "input_sources"
}

// Validate checks required fields for an InputSource.
func (s *InputSource) Validate() error {
	if s.Name == "" {
		return ErrNameRequired
	}
	if s.URL == "" {
		return ErrURLRequired
	}
	switch s.Kind {
	case InputKindMPEGTSUDP, InputKindHLS, InputKindHTTP:
	default:
		return ErrInvalidInputKind
	}
	return nil
}

// IsEnabled reports whether this input should be scheduled.
func (s *InputSource) IsEnabled() bool {
	return BoolVal(s.Enabled)
}
