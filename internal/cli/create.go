package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/config"
	"github.com/BioHazard786/liveclass/internal/dns"
	"github.com/BioHazard786/liveclass/internal/signaling"
	"github.com/BioHazard786/liveclass/internal/ui"
	"github.com/BioHazard786/liveclass/internal/wire"
)

const (
	connectTimeout = 20 * time.Second
	createTimeout  = 10 * time.Second
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "create",
		Aliases: []string{"c"},
		Short:   "Reserve a new classroom id",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return classroom.NewError("load config", err)
			}

			sp := ui.NewConnectionSpinner("Connecting to relay...")
			sp.Start()
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				sp.Error("Relay unreachable")
				return err
			}
			sp.Success("Connected to " + cfg.RelayURL)
			defer client.Close()

			roomID, err := createRoom(cmd.Context(), client)
			if err != nil {
				return err
			}

			fmt.Println(ui.NewRoomInfo(roomID, "liveclass join "+roomID).View())
			return nil
		},
	}
}

func connect(ctx context.Context, cfg *config.Config) (*signaling.Client, error) {
	codec, err := wire.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	client := signaling.NewClient(cfg.RelayURL, codec,
		signaling.WithResolver(dns.NewResolver(cfg.DNSFallback)),
		signaling.WithLogger(slog.Default()),
	)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// createRoom asks the relay for an unused room id.
func createRoom(ctx context.Context, relay signaling.Relay) (string, error) {
	created := make(chan string, 1)
	failed := make(chan string, 1)
	signaling.Handle(relay, wire.EventRoomCreated, func(m *wire.RoomCreated) {
		select {
		case created <- m.RoomID:
		default:
		}
	})
	signaling.Handle(relay, wire.EventError, func(m *wire.Error) {
		select {
		case failed <- m.Error:
		default:
		}
	})

	if err := relay.Send(&wire.CreateRoom{}); err != nil {
		return "", classroom.WrapError("create room", classroom.ErrSignaling, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()
	select {
	case id := <-created:
		return id, nil
	case msg := <-failed:
		return "", classroom.WrapError("create room", classroom.ErrSignaling, msg)
	case <-ctx.Done():
		return "", classroom.WrapError("create room", classroom.ErrSignaling, "no answer from relay")
	}
}
