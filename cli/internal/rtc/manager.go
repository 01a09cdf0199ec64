package rtc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pion/logging"
	transport "github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"
)

const DefaultTURNTimeout = 10 * time.Second

// Options configures peer connection allocation.
type Options struct {
	// ICEServers is the static ICE configuration. When it already contains a
	// TURN server ProvisionURL is not consulted.
	ICEServers []webrtc.ICEServer

	// ProvisionURL is an optional TURN provisioning endpoint.
	ProvisionURL string
	HTTPClient   *http.Client

	// TURNTimeout bounds how long the first connection waits for provisioning
	// before proceeding with the static servers only.
	TURNTimeout time.Duration

	// ForceRelay restricts candidates to TURN relays when TURN is available.
	ForceRelay bool
	// AutoRelay forces relay when the host looks like it is behind a VPN or CGNAT.
	AutoRelay bool

	// Net replaces the host network, used with vnet in tests.
	Net transport.Net

	// PionLogWriter receives pion's own log output. Nil discards it.
	PionLogWriter io.Writer
	PionLogLevel  logging.LogLevel
}

// Manager owns the pion API and ICE provisioning and allocates a fresh
// Connection per negotiation attempt.
type Manager struct {
	api  *webrtc.API
	opts Options

	prefetchOnce sync.Once
	provisioned  chan struct{}

	mu         sync.Mutex
	turnServer *webrtc.ICEServer
	waited     bool
}

// NewManager builds the pion API with the default codecs registered.
func NewManager(opts Options) (*Manager, error) {
	if opts.TURNTimeout <= 0 {
		opts.TURNTimeout = DefaultTURNTimeout
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.Writer = io.Discard
	if opts.PionLogWriter != nil {
		loggerFactory.Writer = opts.PionLogWriter
		loggerFactory.DefaultLogLevel = opts.PionLogLevel
	}

	se := webrtc.SettingEngine{LoggerFactory: loggerFactory}
	if opts.Net != nil {
		se.SetNet(opts.Net)
	}

	return &Manager{
		api: webrtc.NewAPI(
			webrtc.WithSettingEngine(se),
			webrtc.WithMediaEngine(mediaEngine),
		),
		opts:        opts,
		provisioned: make(chan struct{}),
	}, nil
}

func (m *Manager) needsProvisioning() bool {
	return m.opts.ProvisionURL != "" && !HasTURN(m.opts.ICEServers)
}

// Prefetch starts the background TURN fetch. It runs at most once; later
// calls are no-ops.
func (m *Manager) Prefetch(ctx context.Context) {
	if !m.needsProvisioning() {
		return
	}
	m.prefetchOnce.Do(func() {
		go func() {
			defer close(m.provisioned)

			server, err := FetchTURN(ctx, m.opts.HTTPClient, m.opts.ProvisionURL)
			if err != nil {
				slog.Warn("TURN provisioning failed, continuing without relay", "err", err)
				return
			}
			slog.Debug("TURN server provisioned", "urls", server.URLs)

			m.mu.Lock()
			m.turnServer = &server
			m.mu.Unlock()
		}()
	})
}

// Ready returns a channel that is closed once the first connection can be
// allocated without blocking: provisioning finished, TURNTimeout elapsed or
// ctx ended. Without a provisioning URL it is closed already.
func (m *Manager) Ready(ctx context.Context) <-chan struct{} {
	ready := make(chan struct{})
	if !m.needsProvisioning() {
		close(ready)
		return ready
	}
	m.Prefetch(ctx)
	go func() {
		defer close(ready)
		m.awaitTURN(ctx)
	}()
	return ready
}

// awaitTURN waits for provisioning on the first call only.
func (m *Manager) awaitTURN(ctx context.Context) {
	m.mu.Lock()
	wait := !m.waited
	m.waited = true
	m.mu.Unlock()
	if !wait {
		return
	}

	timer := time.NewTimer(m.opts.TURNTimeout)
	defer timer.Stop()
	select {
	case <-m.provisioned:
	case <-timer.C:
		slog.Info("TURN provisioning timed out, proceeding with STUN only", "timeout", m.opts.TURNTimeout)
	case <-ctx.Done():
	}
}

// Configuration returns the ICE configuration for the next connection. The
// first call waits up to TURNTimeout for provisioning unless Ready already
// did; later calls use whatever has arrived.
func (m *Manager) Configuration(ctx context.Context) webrtc.Configuration {
	servers := append([]webrtc.ICEServer(nil), m.opts.ICEServers...)

	if m.needsProvisioning() {
		m.Prefetch(ctx)
		m.awaitTURN(ctx)

		m.mu.Lock()
		if m.turnServer != nil {
			servers = append(servers, *m.turnServer)
		}
		m.mu.Unlock()
	}

	policy := webrtc.ICETransportPolicyAll
	if HasTURN(servers) && (m.opts.ForceRelay || (m.opts.AutoRelay && BehindTunnel())) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	}
}

// NewConnection allocates a peer connection and registers h on it.
func (m *Manager) NewConnection(ctx context.Context, h Handlers) (*Connection, error) {
	pc, err := m.api.NewPeerConnection(m.Configuration(ctx))
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return newConnection(pc, h), nil
}
