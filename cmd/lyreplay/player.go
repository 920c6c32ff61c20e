package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/media"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "mpris player utilities",
	Long:  `discover mpris-compatible players and see what they are playing.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list all mpris-compatible music players currently running on the system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		services, err := media.ListPlayers(bus)
		if err != nil {
			return err
		}

		if len(services) == 0 {
			fmt.Println("no mpris players found")
			fmt.Println("\nstart a player with mpris support, e.g. mpv with the mpris script")
			return nil
		}

		fmt.Printf("found %d mpris player(s):\n\n", len(services))
		for _, service := range services {
			marker := " "
			if service == cfg.MprisService {
				marker = "*"
			}
			if identity := media.Identity(bus, service); identity != "" {
				fmt.Printf("%s %s (%s)\n", marker, service, identity)
			} else {
				fmt.Printf("%s %s\n", marker, service)
			}
		}

		fmt.Println("\nuse --mpris-service to pick the player lyreplay drives")
		return nil
	},
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show the track the player has loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		info, status, position, err := media.CurrentTrack(bus, cfg.MprisService)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", cfg.MprisService, err)
		}
		if info.Title == "" && info.URL == "" {
			fmt.Println("no track loaded")
			return nil
		}

		if info.Title != "" {
			fmt.Printf("title:    %s\n", info.Title)
		}
		if info.Artist != "" {
			fmt.Printf("artist:   %s\n", info.Artist)
		}
		if info.Album != "" {
			fmt.Printf("album:    %s\n", info.Album)
		}
		if info.URL != "" {
			fmt.Printf("url:      %s\n", info.URL)
		}
		if info.Duration > 0 {
			fmt.Printf("duration: %s\n", formatDuration(int64(info.Duration)))
		}
		if info.ArtURL != "" {
			fmt.Printf("artwork:  %s\n", info.ArtURL)
		}
		if status != "" {
			fmt.Printf("state:    %s\n", status)
		}
		if position > 0 {
			fmt.Printf("position: %s\n", formatDuration(int64(position)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerCurrentCmd)
}

func formatDuration(seconds int64) string {
	if seconds < 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
