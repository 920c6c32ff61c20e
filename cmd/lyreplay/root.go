package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/controller"
	"karolbroda.com/lyreplay/internal/httpclient"
	"karolbroda.com/lyreplay/internal/logger"
	"karolbroda.com/lyreplay/internal/playlist"
)

var (
	// global flags
	configPath   string
	manifestPath string
	mprisService string
	syncOffset   float64
	hideHeader   bool
	lrclibURL    string
	logLevel     string
	verbose      bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lyreplay",
	Short: "terminal playlist player with synchronized lyrics",
	Long: `lyreplay plays a song manifest through an mpris player and shows
synchronized lyrics with colours taken from the album artwork.

when run without a subcommand, it starts the interactive TUI player.`,
	Version: "1.0.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentPreRunE = setup

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml or ~/.config/lyreplay/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "f", "", "song manifest path or url")
	rootCmd.PersistentFlags().StringVarP(&mprisService, "mpris-service", "m", "", "mpris service name (e.g., org.mpris.MediaPlayer2.mpv)")
	rootCmd.PersistentFlags().Float64VarP(&syncOffset, "sync-offset", "s", 0, "initial sync offset in seconds")
	rootCmd.PersistentFlags().BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	rootCmd.PersistentFlags().StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib api url")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well (ignored by the TUI)")
}

// setup loads config, then lets flags override it the way the viewer always
// has, then starts logging. The TUI owns the terminal so it only logs to file.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if manifestPath != "" {
		cfg.Manifest = manifestPath
	}
	if mprisService != "" {
		cfg.MprisService = mprisService
	}
	if lrclibURL != "" {
		cfg.LrclibURL = lrclibURL
	}
	if flags.Changed("sync-offset") {
		cfg.SyncOffset = syncOffset
	}
	if flags.Changed("hide-header") {
		cfg.HideHeader = hideHeader
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	interactive := cmd == rootCmd || cmd == runCmd
	return logger.Init(logger.Config{
		Level:      logger.Level(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   true,
		Console:    verbose && !interactive,
	})
}

func newHTTPClient() (*httpclient.Client, error) {
	return httpclient.New(httpclient.Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTP.Timeout,
		Retries:   cfg.HTTP.Retries,
		RateLimit: cfg.HTTP.RateLimit,
		Burst:     cfg.HTTP.Burst,
		UserAgent: cfg.HTTP.UserAgent,
	})
}

func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err == nil {
		return
	}

	if controller.KindOf(err) == controller.KindManifestLoad || errors.Is(err, playlist.ErrManifest) {
		fmt.Fprintln(os.Stderr, "manifest error:", err)
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
