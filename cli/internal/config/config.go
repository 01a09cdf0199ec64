package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain      = "peercall.qzz.io"
	DefaultSTUN        = "stun:stun.l.google.com:19302"
	DefaultTURNTimeout = 10 * time.Second
	DefaultMedia       = "audio,video"
)

// Config holds application configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// WebSocketURL is constructed from domain unless set explicitly
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// TURNSecret mints ephemeral TURN credentials instead of TURNUser/TURNPass
	TURNSecret string

	// TURNProvisionURL is fetched for TURN credentials when no TURN server is configured
	TURNProvisionURL string
	TURNTimeout      time.Duration

	// ICEServersJSON replaces STUN/TURN settings with a full RTCIceServer list
	ICEServersJSON string

	ForceRelay bool

	Audio bool
	Video bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain           string
	RelayURL         string
	STUNServer       string
	TURNServer       string
	TURNUser         string
	TURNPass         string
	TURNSecret       string
	TURNProvisionURL string
	TURNTimeout      time.Duration
	ForceRelay       bool
	Media            string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Domain:           pick(opts.Domain, "DOMAIN", DefaultDomain),
		STUNServer:       pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:       pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:         pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:         pick(opts.TURNPass, "TURN_PASSWORD", ""),
		TURNSecret:       pick(opts.TURNSecret, "TURN_SECRET", ""),
		TURNProvisionURL: pick(opts.TURNProvisionURL, "TURN_PROVISION_URL", ""),
		ICEServersJSON:   os.Getenv("ICE_SERVERS_JSON"),
		TURNTimeout:      opts.TURNTimeout,
		ForceRelay:       opts.ForceRelay,
	}

	cfg.WebSocketURL = pick(opts.RelayURL, "RELAY_URL", "")
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = fmt.Sprintf("wss://%s/ws", cfg.Domain)
	}

	if cfg.TURNTimeout <= 0 {
		raw := os.Getenv("TURN_TIMEOUT")
		if raw == "" {
			cfg.TURNTimeout = DefaultTURNTimeout
		} else {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("TURN_TIMEOUT: invalid duration %q", raw)
			}
			cfg.TURNTimeout = d
		}
	}

	if !cfg.ForceRelay {
		if raw, ok := os.LookupEnv("FORCE_RELAY"); ok && raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("FORCE_RELAY: %w", err)
			}
			cfg.ForceRelay = v
		}
	}

	audio, video, err := parseMedia(pick(opts.Media, "MEDIA", DefaultMedia))
	if err != nil {
		return nil, err
	}
	cfg.Audio, cfg.Video = audio, video

	return cfg, nil
}

// pick returns the flag value, then the environment variable, then the default.
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// parseMedia parses a comma-separated list of media kinds. "none" disables
// local capture.
func parseMedia(raw string) (audio, video bool, err error) {
	for _, part := range splitCommaSeparated(raw) {
		switch strings.ToLower(part) {
		case "audio":
			audio = true
		case "video":
			video = true
		case "none":
		default:
			return false, false, fmt.Errorf("media: unknown kind %q (want audio, video or none)", part)
		}
	}
	return audio, video, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return splitCommaSeparated(c.STUNServer)
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to the usual UDP, TCP and TLS listeners.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.HasPrefix(c.TURNServer, "turn:") || strings.HasPrefix(c.TURNServer, "turns:") ||
		strings.Contains(c.TURNServer, ",") {
		return splitCommaSeparated(c.TURNServer)
	}

	host := c.TURNServer
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}
