package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/cache"
	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/httpclient"
	"karolbroda.com/lyreplay/internal/logger"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/media"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/resolver"
	"karolbroda.com/lyreplay/internal/terminal"
	"karolbroda.com/lyreplay/internal/ui"
)

const shutdownTimeout = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive player",
	Long:  `loads the song manifest and plays it through the mpris player with synchronized lyrics.`,
	RunE:  runPlayer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPlayer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	defer terminal.Reset(os.Stdout)

	client, err := newHTTPClient()
	if err != nil {
		return err
	}

	tracks, err := loadTracks(ctx, client)
	if err != nil {
		return err
	}
	logger.Info("manifest loaded", logger.String("manifest", cfg.Manifest), logger.Int("tracks", len(tracks)))

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	remote, err := media.NewRemote(bus, cfg.MprisService, config.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to create media handle: %w", err)
	}
	if err := remote.Start(); err != nil {
		logger.Warn("could not set up dbus signals", logger.Err(err))
	}
	defer remote.Close()

	lyricSource := lyrics.Cached(
		lyrics.Chain(
			lyrics.PathSource{Client: client},
			lyrics.LrclibSource{Client: client, BaseURL: cfg.LrclibURL},
		),
		cache.New(cfg.LyricsTTL),
	)

	bridge := ui.NewBridge()
	defer bridge.Close()

	ctrl, err := controller.New(controller.Deps{
		Media:      remote,
		AudioProbe: resolver.AudioProbe{Client: client},
		CoverProbe: resolver.ImageProbe{Client: client},
		Lyrics:     lyricSource,
		Renderer:   bridge,
	}, controller.Options{
		ProbeTimeout:  cfg.ProbeTimeout,
		FetchTimeout:  cfg.FetchTimeout,
		ReadyTimeout:  cfg.ReadyTimeout,
		AdvanceDelay:  cfg.AdvanceDelay,
		DefaultCover:  cfg.DefaultCover,
		InitialVolume: &cfg.Volume,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("controller stopped", logger.Err(err))
		}
	}()

	model := ui.NewModel(ui.ModelConfig{
		Controls:   ctrl,
		Bridge:     bridge,
		Artwork:    client,
		TermCaps:   terminal.Detect(os.Getenv),
		HideHeader: cfg.HideHeader,
		Total:      len(tracks),
		Volume:     cfg.Volume,
		SyncOffset: cfg.SyncOffset,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		if err := ctrl.SetSyncOffset(cfg.SyncOffset); err != nil {
			logger.Warn("initial sync offset", logger.Err(err))
		}
		if err := ctrl.SetPlaylist(tracks); err != nil {
			logger.Error("initial playlist", logger.Err(err))
		}
	}()

	if path, ok := watchablePath(cfg.Manifest); ok && cfg.Watch {
		go func() {
			err := playlist.Watch(ctx, path, func() {
				reloaded, err := loadTracks(ctx, client)
				if err != nil {
					logger.Warn("manifest reload failed, keeping current playlist", logger.Err(err))
					return
				}
				if err := ctrl.SetPlaylist(reloaded); err != nil {
					logger.Warn("manifest reload rejected", logger.Err(err))
					return
				}
				p.Send(ui.PlaylistMsg{Total: len(reloaded)})
			})
			if err != nil {
				logger.Warn("manifest watch disabled", logger.Err(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, runErr := p.Run()

	bridge.Close()
	cancel()
	select {
	case <-ctrl.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn("controller did not stop in time")
	}

	if runErr != nil {
		return fmt.Errorf("error running bubble tea: %w", runErr)
	}
	return nil
}

// loadTracks reads the manifest. A failure here leaves nothing to play, so
// it is reported as a manifest error rather than a track error.
func loadTracks(ctx context.Context, client *httpclient.Client) ([]playlist.Track, error) {
	m, err := playlist.Load(ctx, client, cfg.Manifest)
	if err != nil {
		return nil, &controller.Error{Kind: controller.KindManifestLoad, Index: -1, Err: err}
	}
	if len(m.Tracks) == 0 {
		return nil, &controller.Error{Kind: controller.KindManifestLoad, Index: -1, Err: fmt.Errorf("%w: %s has no playable entries", playlist.ErrManifest, cfg.Manifest)}
	}
	if m.DefaultCover != "" && cfg.DefaultCover == playlist.DefaultCover {
		cfg.DefaultCover = m.DefaultCover
	}
	return m.Tracks, nil
}

// watchablePath reports the local file behind a manifest location.
func watchablePath(location string) (string, bool) {
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}
	if strings.Contains(location, "://") || strings.HasPrefix(location, "data:") {
		return "", false
	}
	if _, err := os.Stat(location); err != nil {
		return "", false
	}
	return location, true
}
