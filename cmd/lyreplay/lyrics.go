package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/clock"
	"karolbroda.com/lyreplay/internal/lyrics"
)

var (
	// flags for lyrics parse
	parseAt float64
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "lyrics parsing and lookup",
	Long:  `parse lrc files the way the player does, or look up lyrics on lrclib.`,
}

var lyricsParseCmd = &cobra.Command{
	Use:   "parse <file|url>",
	Short: "parse an lrc file and show its cues",
	Long:  `parse an lrc file or url and print the timed cues. with --at, mark the cue active at that playback time.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newHTTPClient()
		if err != nil {
			return err
		}

		raw, err := client.GetText(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to read lyrics: %w", err)
		}

		doc := lyrics.ParseDocument(raw)
		if doc.Title != "" || doc.Artist != "" {
			fmt.Printf("%s - %s\n", doc.Artist, doc.Title)
		}
		if doc.Album != "" {
			fmt.Println(doc.Album)
		}
		if doc.Offset != 0 {
			fmt.Printf("offset tag: %+.3fs (applied)\n", doc.Offset)
		}
		if len(doc.Cues) == 0 {
			return fmt.Errorf("no timed lines in %s", args[0])
		}

		active := -1
		if cmd.Flags().Changed("at") {
			tracker := clock.NewTracker()
			tracker.SetCues(doc.Cues)
			tracker.SetOffset(cfg.SyncOffset)
			active, _ = tracker.Update(parseAt)
		}

		fmt.Printf("\n%d cues:\n\n", len(doc.Cues))
		for i, cue := range doc.Cues {
			prefix := "  "
			if i == active {
				prefix = "> "
			}
			fmt.Printf("%s[%s] %s\n", prefix, lyrics.FormatTimestamp(cue.TimeSeconds), cue.Text)
		}

		if cmd.Flags().Changed("at") && active < 0 {
			fmt.Printf("\n%s is before the first cue\n", lyrics.FormatTimestamp(parseAt))
		}
		return nil
	},
}

var lyricsSearchCmd = &cobra.Command{
	Use:   "search <artist> <title>",
	Short: "search for lyrics on lrclib",
	Long:  `search for lyrics on lrclib.net and display availability information.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artist := args[0]
		title := args[1]

		client, err := newHTTPClient()
		if err != nil {
			return err
		}

		fmt.Printf("searching for: %s - %s\n\n", artist, title)

		src := lyrics.LrclibSource{Client: client, BaseURL: cfg.LrclibURL}
		data, err := src.Lookup(cmd.Context(), lyrics.Query{Artist: artist, Title: title})
		if err != nil {
			return fmt.Errorf("lyrics not found: %w", err)
		}

		fmt.Printf("found lyrics:\n")
		fmt.Printf("  track:        %s\n", data.TrackName)
		fmt.Printf("  artist:       %s\n", data.ArtistName)
		if data.AlbumName != "" {
			fmt.Printf("  album:        %s\n", data.AlbumName)
		}
		if data.Duration > 0 {
			fmt.Printf("  duration:     %.0fs\n", data.Duration)
		}
		fmt.Printf("  instrumental: %v\n", data.Instrumental)

		if data.SyncedLyrics != "" {
			fmt.Printf("  synced cues:  %d\n", len(lyrics.Parse(data.SyncedLyrics)))
		} else {
			fmt.Printf("  synced cues:  none\n")
		}

		if data.PlainLyrics != "" {
			fmt.Printf("  plain lines:  %d\n", len(strings.Split(strings.TrimSpace(data.PlainLyrics), "\n")))
		} else {
			fmt.Printf("  plain lines:  none\n")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsParseCmd)
	lyricsCmd.AddCommand(lyricsSearchCmd)

	lyricsParseCmd.Flags().Float64Var(&parseAt, "at", 0, "playback time in seconds to mark the active cue")
}
