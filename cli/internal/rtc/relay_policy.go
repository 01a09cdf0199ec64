package rtc

import (
	"net"
	"strings"
)

var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// tunnelMarkers are substrings of interface names used by VPN and tunnel
// adapters (OpenVPN, tap devices, WireGuard, PPP, Cloudflare WARP).
var tunnelMarkers = []string{"tun", "tap", "wg", "ppp", "warp"}

type hostInterface struct {
	name     string
	up       bool
	loopback bool
	addrs    []net.IP
}

// BehindTunnel reports whether this host looks like it sits behind a VPN or
// carrier-grade NAT, where direct paths rarely work and TURN should be forced.
func BehindTunnel() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	hosts := make([]hostInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		h := hostInterface{
			name:     iface.Name,
			up:       iface.Flags&net.FlagUp != 0,
			loopback: iface.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					h.addrs = append(h.addrs, v.IP)
				case *net.IPAddr:
					h.addrs = append(h.addrs, v.IP)
				}
			}
		}
		hosts = append(hosts, h)
	}
	return tunnelLike(hosts)
}

func tunnelLike(hosts []hostInterface) bool {
	for _, h := range hosts {
		if !h.up || h.loopback {
			continue
		}

		name := strings.ToLower(h.name)
		for _, marker := range tunnelMarkers {
			if strings.Contains(name, marker) {
				return true
			}
		}

		for _, ip := range h.addrs {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
