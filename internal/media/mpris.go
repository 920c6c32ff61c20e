package media

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyreplay/internal/logger"
)

const DefaultPollInterval = 100 * time.Millisecond

// player is the part of dbus.BusObject the remote uses.
type player interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
	SetProperty(p string, v interface{}) error
}

// Remote is a Handle that drives an MPRIS player. Sources are opened with
// OpenUri; readiness, end of track and position come from PropertiesChanged
// and Seeked signals plus a position poll while playing.
type Remote struct {
	bus          *dbus.Conn
	service      string
	obj          player
	pollInterval time.Duration

	signals  chan *dbus.Signal
	stop     chan struct{}
	stopOnce sync.Once
	events   chan Event

	mu          sync.Mutex
	source      string
	loading     bool
	prevTrackID dbus.ObjectPath
	trackID     dbus.ObjectPath
	status      string
	wantPlaying bool
	stopping    bool
	volume      float64
	muted       bool
}

func NewRemote(bus *dbus.Conn, service string, pollInterval time.Duration) (*Remote, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service == "" {
		return nil, errors.New("empty mpris service name")
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Remote{
		bus:          bus,
		service:      service,
		obj:          bus.Object(service, mprisPath),
		pollInterval: pollInterval,
		events:       make(chan Event, 64),
		volume:       1,
	}, nil
}

// RemoteFactory returns a Factory of started Remotes sharing bus. Each one
// listens for its own signals and stops listening when closed.
func RemoteFactory(bus *dbus.Conn, service string, pollInterval time.Duration) Factory {
	return func() (Handle, error) {
		r, err := NewRemote(bus, service, pollInterval)
		if err != nil {
			return nil, err
		}
		if err := r.Start(); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	}
}

func (r *Remote) Start() error {
	r.signals = make(chan *dbus.Signal, 16)
	r.stop = make(chan struct{})

	r.bus.Signal(r.signals)

	matches := []string{
		fmt.Sprintf(
			"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
			r.service, mprisPath,
		),
		fmt.Sprintf(
			"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
			r.service, mprisPlayerIface, mprisPath,
		),
	}
	for _, match := range matches {
		if err := r.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, match).Err; err != nil {
			return fmt.Errorf("failed to add signal match: %w", err)
		}
	}

	if info, err := readMetadata(r.obj); err == nil {
		r.mu.Lock()
		r.trackID = info.TrackID
		r.mu.Unlock()
	}

	go r.signalLoop()
	go r.pollLoop()

	return nil
}

func (r *Remote) Close() error {
	r.stopOnce.Do(func() {
		if r.stop != nil {
			close(r.stop)
		}
		if r.signals != nil {
			r.bus.RemoveSignal(r.signals)
		}
	})
	return nil
}

func (r *Remote) Events() <-chan Event {
	return r.events
}

func (r *Remote) SetSource(source string) error {
	r.mu.Lock()
	r.source = source
	r.wantPlaying = false
	if source == "" {
		r.loading = false
		r.stopping = true
		r.mu.Unlock()
		return r.call("Stop")
	}
	r.loading = true
	r.stopping = false
	r.prevTrackID = r.trackID
	r.mu.Unlock()

	if err := r.call("OpenUri", toURI(source)); err != nil {
		r.mu.Lock()
		r.loading = false
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Remote) Play() error {
	r.mu.Lock()
	r.wantPlaying = true
	r.stopping = false
	r.mu.Unlock()
	return r.call("Play")
}

func (r *Remote) Pause() error {
	r.mu.Lock()
	r.wantPlaying = false
	r.mu.Unlock()
	return r.call("Pause")
}

func (r *Remote) SetCurrentTime(seconds float64) error {
	r.mu.Lock()
	trackID := r.trackID
	r.mu.Unlock()

	if trackID == "" {
		return errors.New("player reported no track id")
	}
	if seconds < 0 {
		seconds = 0
	}
	return r.call("SetPosition", trackID, int64(seconds*1e6))
}

func (r *Remote) SetVolume(volume float64) error {
	r.mu.Lock()
	r.volume = volume
	muted := r.muted
	r.mu.Unlock()

	if muted {
		return nil
	}
	return r.setVolume(volume)
}

// SetMuted zeroes the player volume; MPRIS has no mute of its own. The
// stored volume comes back on unmute.
func (r *Remote) SetMuted(muted bool) error {
	r.mu.Lock()
	r.muted = muted
	volume := r.volume
	r.mu.Unlock()

	if muted {
		return r.setVolume(0)
	}
	return r.setVolume(volume)
}

func (r *Remote) setVolume(v float64) error {
	if err := r.obj.SetProperty(mprisPlayerIface+".Volume", dbus.MakeVariant(v)); err != nil {
		return fmt.Errorf("set volume on %s: %w", r.service, err)
	}
	return nil
}

func (r *Remote) call(method string, args ...interface{}) error {
	if err := r.obj.Call(mprisPlayerIface+"."+method, 0, args...).Err; err != nil {
		return fmt.Errorf("%s on %s: %w", method, r.service, err)
	}
	return nil
}

func (r *Remote) signalLoop() {
	for {
		select {
		case sig, ok := <-r.signals:
			if !ok {
				return
			}
			r.handleSignal(sig)
		case <-r.stop:
			return
		}
	}
}

func (r *Remote) pollLoop() {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.poll()
		}
	}
}

func (r *Remote) poll() {
	r.mu.Lock()
	source, loading, status := r.source, r.loading, r.status
	r.mu.Unlock()

	if source == "" {
		return
	}

	if loading {
		// some players never signal the metadata switch after OpenUri
		if info, err := readMetadata(r.obj); err == nil {
			r.observeMetadata(info)
		}
		return
	}

	if status != "Playing" {
		return
	}

	pos, err := readPosition(r.obj)
	if err != nil {
		logger.Debug("mpris position poll failed", logger.Err(err))
		return
	}
	r.emit(Event{Type: EventTimeUpdate, Time: pos}, true)
}

func (r *Remote) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}

	switch sig.Name {
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		r.handlePropertiesChanged(sig)
	case mprisPlayerIface + ".Seeked":
		r.handleSeeked(sig)
	}
}

func (r *Remote) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != mprisPlayerIface {
		return
	}

	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if v, ok := changed["Metadata"]; ok {
		if metadata, ok := v.Value().(map[string]dbus.Variant); ok {
			r.observeMetadata(parseMetadata(metadata))
		}
	}

	if v, ok := changed["PlaybackStatus"]; ok {
		if status, ok := v.Value().(string); ok {
			r.observeStatus(status)
		}
	}
}

func (r *Remote) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}

	micros, ok := sig.Body[0].(int64)
	if !ok || micros < 0 {
		return
	}

	r.mu.Lock()
	attached := r.source != "" && !r.loading
	r.mu.Unlock()

	if attached {
		r.emit(Event{Type: EventTimeUpdate, Time: float64(micros) / 1e6}, false)
	}
}

// observeMetadata settles a pending load once the player reports the
// requested source, and treats a switch to anything else as end of track.
func (r *Remote) observeMetadata(info TrackInfo) {
	r.mu.Lock()
	if info.TrackID != "" {
		r.trackID = info.TrackID
	}

	if r.source == "" {
		r.mu.Unlock()
		return
	}

	matches := sameSource(r.source, info.URL) ||
		(info.URL == "" && info.TrackID != "" && info.TrackID != r.prevTrackID)

	if r.loading {
		if !matches {
			r.mu.Unlock()
			return
		}
		r.loading = false
		pause := !r.wantPlaying
		r.mu.Unlock()

		if pause {
			// OpenUri starts playback on most players
			if err := r.call("Pause"); err != nil {
				logger.Debug("mpris pause after open failed", logger.Err(err))
			}
		}
		r.emit(Event{Type: EventMetadataReady, Duration: info.Duration}, false)
		r.emit(Event{Type: EventCanPlay}, false)
		return
	}

	if !matches && info.URL != "" {
		r.source = ""
		r.mu.Unlock()
		r.emit(Event{Type: EventEnded}, false)
		return
	}
	r.mu.Unlock()
}

func (r *Remote) observeStatus(status string) {
	r.mu.Lock()
	prev := r.status
	r.status = status
	ended := status == "Stopped" && prev != "Stopped" && r.source != "" && !r.loading && !r.stopping
	if ended {
		r.source = ""
	}
	r.mu.Unlock()

	if ended {
		r.emit(Event{Type: EventEnded}, false)
	}
}

// emit drops time updates when the consumer lags; lifecycle events wait.
func (r *Remote) emit(ev Event, droppable bool) {
	if droppable {
		select {
		case r.events <- ev:
		default:
		}
		return
	}

	select {
	case r.events <- ev:
	case <-r.stop:
	}
}
