// Watchpanel - terminal dashboard for Watchgrid
//
// Watchpanel connects to a Watchgrid relay server, renders the sensor grid
// as a live terminal UI, and lets an operator place devices, join rooms, and
// exchange room-scoped messages with other operators.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
var version = "dev"

var (
	flagServer      string
	flagRoom        string
	flagActivateURL string
)

var rootCmd = &cobra.Command{
	Use:   "watchpanel",
	Short: "Terminal dashboard for a Watchgrid relay server",
	Long: `Watchpanel renders the Watchgrid sensor grid as a live terminal UI.

Device transitions relayed by the server light cells up in place:
placed devices, connected devices, and motion alarms each get their
own colour. The input line doubles as a command prompt:

  /join <room>    join a room for operator messaging
  /add <address>  place a device on the grid
  /remove <addr>  remove a placed device
  /quit           exit

Anything else typed is sent as a message to the joined room.`,
	Version: version,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		panel, err := newPanel(flagServer, flagActivateURL)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", flagServer, err)
		}
		defer panel.Close()

		if flagRoom != "" {
			panel.JoinRoom(flagRoom)
		}

		return runUI(panel)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagServer, "server", "s", "http://localhost:3001", "Watchgrid server base URL")
	rootCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room to join on startup")
	rootCmd.Flags().StringVarP(&flagActivateURL, "activate-url", "a", "", "device network base URL for activation requests (optional)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
