package resolver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"

	"karolbroda.com/lyreplay/internal/httpclient"
	"karolbroda.com/lyreplay/internal/media"
)

var (
	ErrNotAudio = errors.New("not an audio resource")
	ErrNotImage = errors.New("not an image resource")
)

// Opener streams a location; *httpclient.Client implements it.
type Opener interface {
	Open(ctx context.Context, location string, header http.Header) (*httpclient.Body, error)
}

type audioFormat int

const (
	formatUnknown audioFormat = iota
	formatMP3
	formatWAV
	formatOther
)

// AudioProbe accepts a location when it answers with an audio body. MP3 and
// WAV bodies must also decode a frame header.
type AudioProbe struct {
	Client Opener
}

func (p AudioProbe) Probe(ctx context.Context, location string) error {
	body, err := p.Client.Open(ctx, location, http.Header{"Range": {"bytes=0-"}})
	if err != nil {
		return err
	}
	defer body.Close()

	switch detectAudio(body.ContentType, location) {
	case formatMP3:
		if _, _, err := mp3.Decode(body); err != nil {
			return fmt.Errorf("%w: mp3 header: %v", ErrNotAudio, err)
		}
	case formatWAV:
		if _, _, err := wav.Decode(body); err != nil {
			return fmt.Errorf("%w: wav header: %v", ErrNotAudio, err)
		}
	case formatOther:
	default:
		return fmt.Errorf("%w: content type %q", ErrNotAudio, body.ContentType)
	}
	return nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func detectAudio(contentType, location string) audioFormat {
	switch mt := mediaType(contentType); {
	case mt == "audio/mpeg" || mt == "audio/mp3":
		return formatMP3
	case mt == "audio/wav" || mt == "audio/x-wav" || mt == "audio/wave" || mt == "audio/vnd.wave":
		return formatWAV
	case strings.HasPrefix(mt, "audio/"):
		return formatOther
	case mt != "" && mt != "application/octet-stream":
		return formatUnknown
	}

	ext := strings.ToLower(path.Ext(strings.SplitN(location, "?", 2)[0]))
	switch ext {
	case ".mp3":
		return formatMP3
	case ".wav":
		return formatWAV
	case ".ogg", ".oga", ".opus", ".flac", ".m4a", ".aac":
		return formatOther
	default:
		return formatUnknown
	}
}

// ImageProbe accepts a location that decodes as png, jpeg or gif, or that
// is served as svg.
type ImageProbe struct {
	Client Opener
}

func (p ImageProbe) Probe(ctx context.Context, location string) error {
	body, err := p.Client.Open(ctx, location, nil)
	if err != nil {
		return err
	}
	defer body.Close()

	r := bufio.NewReader(body)
	mt := mediaType(body.ContentType)

	if mt == "image/svg+xml" {
		head, _ := r.Peek(512)
		if bytes.Contains(head, []byte("<svg")) || bytes.HasPrefix(bytes.TrimSpace(head), []byte("<?xml")) {
			return nil
		}
		return fmt.Errorf("%w: svg without markup", ErrNotImage)
	}

	if _, _, err := image.DecodeConfig(r); err != nil {
		return fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return nil
}

// MediaProbe asks a scratch handle to load the location and waits for it to
// report it can play. The handle is released before returning.
type MediaProbe struct {
	New media.Factory
}

func (p MediaProbe) Probe(ctx context.Context, location string) error {
	h, err := p.New()
	if err != nil {
		return fmt.Errorf("create media handle: %w", err)
	}
	defer func() {
		_ = h.SetSource("")
		if c, ok := h.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	if err := h.SetSource(location); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return errors.New("media handle closed")
			}
			switch ev.Type {
			case media.EventCanPlay, media.EventMetadataReady:
				return nil
			case media.EventError:
				if ev.Err != nil {
					return ev.Err
				}
				return errors.New("media error")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
