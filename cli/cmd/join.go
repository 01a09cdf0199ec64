package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/BioHazard786/peercall/cli/internal/config"
	"github.com/BioHazard786/peercall/cli/internal/dns"
	"github.com/BioHazard786/peercall/cli/internal/logging"
	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/BioHazard786/peercall/cli/internal/rooms"
	"github.com/BioHazard786/peercall/cli/internal/rtc"
	"github.com/BioHazard786/peercall/cli/internal/session"
	"github.com/BioHazard786/peercall/cli/internal/signaling"
	"github.com/BioHazard786/peercall/cli/internal/ui"
	"github.com/spf13/cobra"
)

const (
	joinTimeout   = 15 * time.Second
	hangupTimeout = 5 * time.Second
)

var (
	flagDomain        string
	flagRelayURL      string
	flagSTUN          string
	flagTURN          string
	flagTURNUser      string
	flagTURNPass      string
	flagTURNSecret    string
	flagTURNProvision string
	flagTURNTimeout   time.Duration
	flagForceRelay    bool
	flagMedia         string
	flagLogFile       string
)

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j", "call"},
	Short:   "Join a room and call whoever else is in it",
	Long: `Join a room on the signaling relay and start a call with the other participant.
Without a room name you are asked for one, with a generated suggestion.

Examples:
  peercall join calm-otter-42
  peercall join --media audio standup
  peercall join --relay --turn turn.example.com --turn-user u --turn-pass p lobby`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var room string
		var err error
		if len(args) == 1 {
			room, err = rooms.Normalize(args[0])
		} else {
			room, err = ui.PromptRoom()
		}
		if err != nil {
			return err
		}
		return joinRoom(cmd.Context(), room)
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&flagDomain, "domain", "", "relay domain (env DOMAIN)")
	f.StringVar(&flagRelayURL, "relay-url", "", "full relay websocket URL, overrides --domain (env RELAY_URL)")
	f.StringVar(&flagSTUN, "stun", "", "STUN server URLs, comma separated (env STUN_SERVER)")
	f.StringVar(&flagTURN, "turn", "", "TURN server host or URLs (env TURN_SERVER)")
	f.StringVar(&flagTURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	f.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	f.StringVar(&flagTURNSecret, "turn-secret", "", "TURN shared secret for ephemeral credentials (env TURN_SECRET)")
	f.StringVar(&flagTURNProvision, "turn-provision-url", "", "endpoint that hands out TURN credentials (env TURN_PROVISION_URL)")
	f.DurationVar(&flagTURNTimeout, "turn-timeout", 0, "how long the first connection waits for TURN provisioning (env TURN_TIMEOUT)")
	f.BoolVar(&flagForceRelay, "relay", false, "only use TURN relay candidates (env FORCE_RELAY)")
	f.StringVar(&flagMedia, "media", "", "local media to send: audio, video or none (env MEDIA)")
	f.StringVar(&flagLogFile, "log-file", "", "write logs to this file while the call screen is shown")

	rootCmd.AddCommand(joinCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Domain:           flagDomain,
		RelayURL:         flagRelayURL,
		STUNServer:       flagSTUN,
		TURNServer:       flagTURN,
		TURNUser:         flagTURNUser,
		TURNPass:         flagTURNPass,
		TURNSecret:       flagTURNSecret,
		TURNProvisionURL: flagTURNProvision,
		TURNTimeout:      flagTURNTimeout,
		ForceRelay:       flagForceRelay,
		Media:            flagMedia,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil && cfg.ICEServersJSON == "" && cfg.TURNProvisionURL == "" {
		return nil, errors.New("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// openLog points slog and pion at the log file, if any. Without one only
// errors reach stderr.
func openLog() (io.Writer, func(), error) {
	if flagLogFile == "" {
		logging.Init(nil)
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logging.Init(f)
	return f, func() { _ = f.Close() }, nil
}

func joinRoom(ctx context.Context, room string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	iceServers, err := cfg.ICEServers()
	if err != nil {
		return err
	}

	logWriter, closeLog, err := openLog()
	if err != nil {
		return err
	}
	defer closeLog()

	mgr, err := rtc.NewManager(rtc.Options{
		ICEServers:    iceServers,
		ProvisionURL:  cfg.TURNProvisionURL,
		TURNTimeout:   cfg.TURNTimeout,
		ForceRelay:    cfg.ForceRelay,
		AutoRelay:     true,
		PionLogWriter: logWriter,
		PionLogLevel:  logging.PionLevel(logging.Level()),
	})
	if err != nil {
		return err
	}
	mgr.Prefetch(ctx)

	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	channel, err := signaling.Dial(ctx, cfg.WebSocketURL, room, dns.NewResolver())
	if err != nil {
		sp.Error("Could not reach the relay")
		return session.NewError("connect to relay", session.ErrSignaling, err)
	}
	defer channel.Close()
	sp.Stop()

	go logRelayErrors(ctx, channel)

	coord := session.New(session.Config{
		Room:      room,
		Signaler:  channel,
		Inbound:   channel,
		Connector: session.FromManager(mgr),
		Logger:    slog.Default(),
	})

	// The session outlives ctx so that a signal still hangs up cleanly.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- coord.Run(runCtx) }()
	go hangupOnSignal(ctx, coord)

	if err := coord.Join(ctx); err != nil {
		return err
	}
	snap, err := waitForRole(ctx, coord)
	if err != nil {
		cancel()
		<-runErr
		return err
	}
	fmt.Println(ui.RoomBanner(room, snap.Role.String()))

	var capturer media.Capturer = media.Synthetic{Audio: cfg.Audio, Video: cfg.Video}
	if !cfg.Audio && !cfg.Video {
		ui.PrintWarning("No local media selected, joining receive-only.")
		capturer = media.ReceiveOnly{}
	}
	coord.CaptureMedia(runCtx, capturer)

	model, uiErr := ui.RunCall(coord.Controls(), coord.Updates(), coord.Snapshot())
	if model.HungUp() || uiErr != nil {
		hctx, hcancel := context.WithTimeout(context.Background(), hangupTimeout)
		if err := coord.Hangup(hctx); err != nil && !errors.Is(err, session.ErrClosed) {
			slog.Warn("hangup", "err", err)
		}
		hcancel()
	}
	cancel()
	err = <-runErr

	final := coord.Snapshot()
	outcome := "hung up"
	switch {
	case err != nil:
		outcome = "failed"
	case ctx.Err() != nil:
		outcome = "interrupted"
	case !model.HungUp():
		outcome = "ended"
	}
	relay := "auto"
	if cfg.ForceRelay {
		relay = "forced"
	}
	fmt.Println()
	ui.RenderCallSummary(ui.IconStats+" Call Summary", ui.CallSummary{
		Room:         room,
		Role:         final.Role.String(),
		Outcome:      outcome,
		Duration:     model.TalkTime(),
		Negotiations: final.Negotiations,
		Relay:        relay,
	})

	if uiErr != nil {
		return uiErr
	}
	return err
}

// waitForRole blocks until the relay has placed us in the room.
func waitForRole(ctx context.Context, coord *session.Coordinator) (session.Snapshot, error) {
	sp := ui.NewWaitingSpinner("Joining room...")
	sp.Start()
	defer sp.Stop()

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap := coord.Snapshot()
		if snap.Role != session.RoleUnassigned {
			return snap, nil
		}
		select {
		case <-coord.Done():
			if err := coord.Err(); err != nil {
				return snap, err
			}
			return snap, session.ErrClosed
		case <-ctx.Done():
			return snap, session.NewError("join room", session.ErrSignaling, ctx.Err())
		case <-ticker.C:
		}
	}
}

// hangupOnSignal sends bye when ctx is cancelled by SIGINT or SIGTERM.
func hangupOnSignal(ctx context.Context, coord *session.Coordinator) {
	select {
	case <-coord.Done():
		return
	case <-ctx.Done():
	}
	hctx, cancel := context.WithTimeout(context.Background(), hangupTimeout)
	defer cancel()
	if err := coord.Hangup(hctx); err != nil && !errors.Is(err, session.ErrClosed) {
		slog.Warn("hangup on signal", "err", err)
	}
}

func logRelayErrors(ctx context.Context, channel *signaling.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-channel.Errors():
			if !ok {
				return
			}
			slog.Warn("relay error", "message", msg)
		}
	}
}
