// Package media defines the playable-media handle the controller drives and
// an MPRIS implementation that remote-controls a desktop player over D-Bus.
package media

type EventType int

const (
	EventMetadataReady EventType = iota
	EventTimeUpdate
	EventCanPlay
	EventEnded
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventMetadataReady:
		return "metadata-ready"
	case EventTimeUpdate:
		return "time-update"
	case EventCanPlay:
		return "can-play"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification. Duration is set for metadata-ready,
// Time for time-update and Err for error.
type Event struct {
	Type     EventType
	Time     float64
	Duration float64
	Err      error
}

// Handle decodes and plays one source at a time. Setting the source to ""
// releases whatever was loaded.
type Handle interface {
	SetSource(url string) error
	Play() error
	Pause() error
	SetCurrentTime(seconds float64) error
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	Events() <-chan Event
}

// Factory makes a fresh handle, used by probes that must not disturb the
// handle that is playing.
type Factory func() (Handle, error)
