package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/peercall/cli/internal/ui"
	"github.com/BioHazard786/peercall/cli/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "peercall",
	Short:   "Two-party WebRTC calls from the terminal",
	Long:    `peercall joins a named room on a signaling relay and sets up a direct WebRTC call with whoever else joins it. The first participant in a room makes the offer, the second answers, and the call runs peer to peer once both sides have their media ready.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, ui.ErrCancelled) {
			return
		}
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
