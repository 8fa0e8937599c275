// Package cli holds the liveclass commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/liveclass/internal/config"
	"github.com/BioHazard786/liveclass/internal/ui"
	"github.com/BioHazard786/liveclass/internal/version"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "liveclass",
		Short: "Live classroom over a WebRTC mesh",
		Long: `LiveClass joins a live classroom from the terminal. Participants exchange
audio, video and screen shares directly over WebRTC, while a thin relay
carries signaling, chat, raised hands and the teacher's controls.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyRelay, "", "Relay URL (ws://, wss://, http:// or https://)")
	flags.String(config.KeyCodec, "", "Relay wire codec: json or msgpack")
	flags.StringP(config.KeySTUN, "s", "", "Custom STUN server")
	flags.StringP(config.KeyTURN, "t", "", "Custom TURN server")
	flags.String(config.KeyTURNUser, "", "TURN username")
	flags.String(config.KeyTURNPass, "", "TURN password")
	flags.Bool(config.KeyForceRelay, false, "Force relay mode")
	flags.Bool(config.KeyDNSFallback, true, "Retry relay lookups against public DNS servers")
	flags.String(config.KeyConfigFile, "", "Config file (yaml, json or toml)")

	root.AddCommand(newJoinCmd(), newCreateCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	l := config.NewLoader()
	if err := l.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return l.Load()
}

// Execute runs the root command. An interrupt cancels the command context so
// a joined participant leaves the room cleanly.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	return 0
}
