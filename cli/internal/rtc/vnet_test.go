package rtc

import (
	"testing"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
)

// newVNetManagers returns two managers whose connections can only reach each
// other over an in-memory network.
func newVNetManagers(t *testing.T) (*Manager, *Manager) {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		t.Fatalf("new net A: %v", err)
	}
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		t.Fatalf("new net B: %v", err)
	}
	if err := router.AddNet(netA); err != nil {
		t.Fatalf("add net A: %v", err)
	}
	if err := router.AddNet(netB); err != nil {
		t.Fatalf("add net B: %v", err)
	}
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}

	a, err := NewManager(Options{Net: netA})
	if err != nil {
		t.Fatalf("NewManager A: %v", err)
	}
	b, err := NewManager(Options{Net: netB})
	if err != nil {
		t.Fatalf("NewManager B: %v", err)
	}
	return a, b
}
