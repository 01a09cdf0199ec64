package rtc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

var stunOnly = []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}}

func turnEndpoint(t *testing.T, delay time.Duration, hits *atomic.Int32) string {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-time.After(delay):
		case <-release:
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"username": "alice",
			"password": "s3cret",
			"turn":     "turn.example.org:3478",
		})
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv.URL
}

func TestConfiguration_UsesProvisionedTURN(t *testing.T) {
	var hits atomic.Int32
	m, err := NewManager(Options{
		ICEServers:   stunOnly,
		ProvisionURL: turnEndpoint(t, 0, &hits),
		TURNTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := m.Configuration(context.Background())
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("ICEServers: got %d, want 2", len(cfg.ICEServers))
	}
	turn := cfg.ICEServers[1]
	if turn.URLs[0] != "turn:turn.example.org:3478" || turn.Username != "alice" || turn.Credential != "s3cret" {
		t.Fatalf("TURN server: got %+v", turn)
	}

	m.Configuration(context.Background())
	if n := hits.Load(); n != 1 {
		t.Fatalf("provisioning requests: got %d, want 1", n)
	}
}

func TestConfiguration_TimesOutToSTUNOnly(t *testing.T) {
	var hits atomic.Int32
	m, err := NewManager(Options{
		ICEServers:   stunOnly,
		ProvisionURL: turnEndpoint(t, time.Minute, &hits),
		TURNTimeout:  100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	start := time.Now()
	cfg := m.Configuration(context.Background())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Configuration waited %v", elapsed)
	}
	if HasTURN(cfg.ICEServers) {
		t.Fatalf("unexpected TURN server in %+v", cfg.ICEServers)
	}

	// Later connections do not wait again.
	start = time.Now()
	m.Configuration(context.Background())
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("second Configuration waited %v", elapsed)
	}
}

func TestReady_WaitsOffTheCaller(t *testing.T) {
	var hits atomic.Int32
	m, err := NewManager(Options{
		ICEServers:   stunOnly,
		ProvisionURL: turnEndpoint(t, time.Minute, &hits),
		TURNTimeout:  200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	start := time.Now()
	ready := m.Ready(context.Background())
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Ready blocked for %v", elapsed)
	}
	select {
	case <-ready:
		t.Fatal("ready before provisioning finished or timed out")
	default:
	}

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("Ready never closed")
	}

	start = time.Now()
	m.Configuration(context.Background())
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Configuration waited %v after Ready", elapsed)
	}
}

func TestReady_ClosedWithoutProvisioning(t *testing.T) {
	m, err := NewManager(Options{ICEServers: stunOnly})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	select {
	case <-m.Ready(context.Background()):
	default:
		t.Fatal("Ready not closed without a provisioning URL")
	}
}

func TestConfiguration_StaticTURNSkipsProvisioning(t *testing.T) {
	var hits atomic.Int32
	static := append([]webrtc.ICEServer{}, stunOnly...)
	static = append(static, webrtc.ICEServer{
		URLs:       []string{"turn:relay.example.org:3478"},
		Username:   "u",
		Credential: "p",
	})
	m, err := NewManager(Options{
		ICEServers:   static,
		ProvisionURL: turnEndpoint(t, 0, &hits),
		ForceRelay:   true,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := m.Configuration(context.Background())
	if cfg.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Fatalf("policy: got %s, want relay", cfg.ICETransportPolicy)
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("provisioning requests: got %d, want 0", n)
	}
}

func TestConfiguration_ForceRelayNeedsTURN(t *testing.T) {
	m, err := NewManager(Options{ICEServers: stunOnly, ForceRelay: true})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if cfg := m.Configuration(context.Background()); cfg.ICETransportPolicy != webrtc.ICETransportPolicyAll {
		t.Fatalf("policy: got %s, want all", cfg.ICETransportPolicy)
	}
}

func TestTunnelLike(t *testing.T) {
	cases := []struct {
		name  string
		hosts []hostInterface
		want  bool
	}{
		{"plain ethernet", []hostInterface{{name: "eth0", up: true, addrs: []net.IP{net.ParseIP("192.168.1.5")}}}, false},
		{"wireguard", []hostInterface{{name: "wg0", up: true}}, true},
		{"down tunnel", []hostInterface{{name: "tun0"}}, false},
		{"cgnat address", []hostInterface{{name: "en0", up: true, addrs: []net.IP{net.ParseIP("100.100.1.2")}}}, true},
		{"loopback", []hostInterface{{name: "lo", up: true, loopback: true, addrs: []net.IP{net.ParseIP("100.64.0.1")}}}, false},
	}
	for _, tc := range cases {
		if got := tunnelLike(tc.hosts); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
