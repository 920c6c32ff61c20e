package media

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisPrefix      = "org.mpris.MediaPlayer2."
)

// TrackInfo is what an MPRIS player reports about its current item.
type TrackInfo struct {
	TrackID  dbus.ObjectPath
	URL      string
	Title    string
	Artist   string
	Album    string
	ArtURL   string
	Duration float64
}

func parseMetadata(metadata map[string]dbus.Variant) TrackInfo {
	return TrackInfo{
		TrackID:  extractTrackID(metadata),
		URL:      extractString(metadata, "xesam:url"),
		Title:    extractString(metadata, "xesam:title"),
		Artist:   extractArtist(metadata, "xesam:artist"),
		Album:    extractString(metadata, "xesam:album"),
		ArtURL:   extractString(metadata, "mpris:artUrl"),
		Duration: extractDurationSeconds(metadata, "mpris:length"),
	}
}

func variantValue(metadata map[string]dbus.Variant, key string) interface{} {
	if metadata == nil {
		return nil
	}
	variant, ok := metadata[key]
	if !ok {
		return nil
	}
	return variant.Value()
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	text, _ := variantValue(metadata, key).(string)
	return text
}

func extractTrackID(metadata map[string]dbus.Variant) dbus.ObjectPath {
	switch typed := variantValue(metadata, "mpris:trackid").(type) {
	case dbus.ObjectPath:
		return typed
	case string:
		return dbus.ObjectPath(typed)
	default:
		return ""
	}
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	switch typed := variantValue(metadata, key).(type) {
	case []string:
		return strings.Join(typed, ", ")
	case string:
		return typed
	default:
		return ""
	}
}

func extractDurationSeconds(metadata map[string]dbus.Variant, key string) float64 {
	switch typed := variantValue(metadata, key).(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return float64(typed) / 1e6
	case uint64:
		return float64(typed) / 1e6
	default:
		return 0
	}
}

// toURI gives players a URI even for bare filesystem paths.
func toURI(source string) string {
	if strings.Contains(source, "://") || strings.HasPrefix(source, "data:") {
		return source
	}
	return (&url.URL{Scheme: "file", Path: source}).String()
}

// sameSource compares a requested source with the url a player reports,
// ignoring the file:// form and escaping differences.
func sameSource(requested, reported string) bool {
	if requested == "" || reported == "" {
		return false
	}
	norm := func(s string) string {
		s = toURI(s)
		if u, err := url.PathUnescape(s); err == nil {
			s = u
		}
		return strings.TrimSuffix(s, "/")
	}
	return norm(requested) == norm(reported)
}

// ListPlayers returns the MPRIS bus names currently registered.
func ListPlayers(bus *dbus.Conn) ([]string, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}

	var names []string
	err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

// Identity returns the player's human readable name, falling back to the
// bus name suffix.
func Identity(bus *dbus.Conn, service string) string {
	fallback := strings.TrimPrefix(service, mprisPrefix)
	if bus == nil {
		return fallback
	}

	prop, err := bus.Object(service, mprisPath).GetProperty(mprisRootIface + ".Identity")
	if err != nil {
		return fallback
	}
	if identity, ok := prop.Value().(string); ok && identity != "" {
		return identity
	}
	return fallback
}

// CurrentTrack reads the metadata, status and position of a player.
func CurrentTrack(bus *dbus.Conn, service string) (TrackInfo, string, float64, error) {
	if bus == nil {
		return TrackInfo{}, "", 0, errors.New("nil dbus connection")
	}
	obj := bus.Object(service, mprisPath)

	info, err := readMetadata(obj)
	if err != nil {
		return TrackInfo{}, "", 0, err
	}

	status := ""
	if prop, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus"); err == nil {
		status, _ = prop.Value().(string)
	}

	pos, _ := readPosition(obj)
	return info, status, pos, nil
}

func readMetadata(obj player) (TrackInfo, error) {
	prop, err := obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return TrackInfo{}, fmt.Errorf("failed to get metadata property: %w", err)
	}

	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return TrackInfo{}, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}
	return parseMetadata(metadata), nil
}

func readPosition(obj player) (float64, error) {
	prop, err := obj.GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		return 0, fmt.Errorf("failed to get position property: %w", err)
	}

	micros, ok := prop.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}
	if micros < 0 {
		return 0, nil
	}
	return float64(micros) / 1e6, nil
}
