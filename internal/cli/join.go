package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/config"
	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/media/capture"
	"github.com/BioHazard786/liveclass/internal/peer"
	"github.com/BioHazard786/liveclass/internal/session"
	"github.com/BioHazard786/liveclass/internal/ui"
)

func newJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "join <room-id|url>",
		Aliases: []string{"j"},
		Short:   "Join a live classroom",
		Long: `Join a live classroom and exchange audio, video and chat with everyone in it.

Examples:
  liveclass join brave-owl-river-chalk
  liveclass join https://liveclass.qzz.io/r/brave-owl-river-chalk --name Ada
  liveclass join brave-owl-river-chalk --role teacher --force-relay`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := parseRoomInput(args[0])
			if err != nil {
				return err
			}
			return joinRoom(cmd, roomID)
		},
	}
	cmd.Flags().StringP(config.KeyName, "n", "", "Display name")
	cmd.Flags().String(config.KeyRole, "", "teacher or student")
	return cmd
}

func joinRoom(cmd *cobra.Command, roomID string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return classroom.NewError("load config", err)
	}

	fmt.Println()
	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	client, err := connect(cmd.Context(), cfg)
	if err != nil {
		sp.Error("Relay unreachable")
		return err
	}
	sp.Success("Connected to " + cfg.RelayURL)
	defer client.Close()

	source, api := captureSource()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s := session.New(session.Config{
		RoomID:  roomID,
		Name:    cfg.Name,
		Role:    cfg.Role,
		Relay:   client,
		Factory: peer.NewPionFactory(api, cfg.ICE(), slog.Default()),
		Source:  source,
		Logger:  slog.Default(),
	})
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	if err := s.Join(ctx); err != nil {
		cancel()
		<-done
		return err
	}

	uiErr := ui.RunClassroom(ctx, s, client.Dropped())
	cancel()
	<-done

	ui.RenderSummary(s.Summary())
	return uiErr
}

// captureSource sets up the encoders and the matching pion API. Without them
// the participant joins receive-only with pion's default codecs.
func captureSource() (media.Source, *webrtc.API) {
	src, err := capture.NewSource(capture.Options{}, slog.Default())
	if err != nil {
		ui.PrintWarning("Camera and microphone unavailable, joining receive-only")
		slog.Warn("capture setup failed", "error", err)
		return nil, nil
	}
	return src, src.API()
}

func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		return extractRoomIDFromURL(input)
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", classroom.NewError("parse URL", err)
	}

	if room := parsedURL.Query().Get("room"); room != "" {
		return room, nil
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if (part == "r" || part == "room") && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}
