package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/media"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/resolver"
)

var viaPlayer bool

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "inspect the song manifest",
	Long:  `list and search the tracks in the manifest, or check which of their sources actually work.`,
}

var playlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "list manifest tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracks, err := manifestTracks(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTITLE\tARTIST\tDURATION\tSOURCES")
		for i, t := range tracks {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", i, t.Title, t.Artist, formatDuration(int64(t.DurationHint)), len(t.AudioCandidates))
		}
		return w.Flush()
	},
}

var playlistSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "fuzzy search manifest tracks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracks, err := manifestTracks(cmd.Context())
		if err != nil {
			return err
		}

		matches := playlist.Search(tracks, strings.Join(args, " "))
		if len(matches) == 0 {
			fmt.Println("no matching tracks")
			return nil
		}

		for _, m := range matches {
			fmt.Printf("  %3d  %s\n", m.Index, m.Track.DisplayName())
		}
		return nil
	},
}

var playlistResolveCmd = &cobra.Command{
	Use:   "resolve [index]",
	Short: "probe audio and cover candidates",
	Long: `probe every track's candidates in order, or just one track's, and report which source would be used.

with --via-player, audio candidates are loaded into the mpris player instead
of being fetched and decoded locally. this interrupts whatever it is playing.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tracks, err := manifestTracks(ctx)
		if err != nil {
			return err
		}

		indexes := make([]int, 0, len(tracks))
		if len(args) == 1 {
			i, err := strconv.Atoi(args[0])
			if err != nil || i < 0 || i >= len(tracks) {
				return fmt.Errorf("index %q not in [0,%d)", args[0], len(tracks))
			}
			indexes = append(indexes, i)
		} else {
			for i := range tracks {
				indexes = append(indexes, i)
			}
		}

		client, err := newHTTPClient()
		if err != nil {
			return err
		}
		var audio resolver.Probe = resolver.AudioProbe{Client: client}
		if viaPlayer {
			bus, err := dbus.ConnectSessionBus()
			if err != nil {
				return fmt.Errorf("failed to connect to session bus: %w", err)
			}
			defer bus.Close()
			audio = resolver.MediaProbe{New: media.RemoteFactory(bus, cfg.MprisService, config.PollInterval)}
		}
		cover := resolver.ImageProbe{Client: client}

		for _, i := range indexes {
			t := tracks[i]
			fmt.Printf("%d  %s\n", i, t.DisplayName())
			report(ctx, "audio", t.AudioCandidates, audio)
			report(ctx, "cover", t.CoverCandidates, cover)
			fmt.Println()
		}
		return nil
	},
}

func report(ctx context.Context, label string, candidates []string, probe resolver.Probe) {
	chosen, attempts, err := resolver.ResolveReport(ctx, candidates, probe, cfg.ProbeTimeout)
	for _, a := range attempts {
		mark := "✗"
		if a.Location == chosen {
			mark = "✓"
		}
		line := fmt.Sprintf("    %s %s %s (%s, %s)", label, mark, a.Location, a.Outcome, a.Elapsed.Round(time.Millisecond))
		if a.Err != nil {
			line += ": " + a.Err.Error()
		}
		fmt.Println(line)
	}
	if err != nil {
		fmt.Printf("    %s: %v\n", label, err)
	}
}

func manifestTracks(ctx context.Context) ([]playlist.Track, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := newHTTPClient()
	if err != nil {
		return nil, err
	}
	return loadTracks(ctx, client)
}

func init() {
	rootCmd.AddCommand(playlistCmd)

	playlistCmd.AddCommand(playlistListCmd)
	playlistCmd.AddCommand(playlistSearchCmd)
	playlistCmd.AddCommand(playlistResolveCmd)

	playlistResolveCmd.Flags().BoolVar(&viaPlayer, "via-player", false, "probe audio through the mpris player")
}
