package security

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
)

// URLs longer than this are treated as probe attempts.
const maxURLLength = 2048

// attackPatterns are lowercase fragments that show up in traversal, probe
// and injection attempts.
var attackPatterns = []string{
	"../", "..\\", "etc/passwd", "cmd.exe",
	".env", ".git", ".ssh",
	"wp-admin", "phpmyadmin", "admin.php", "config.php",
	"<script", "javascript:", "eval(", "union select", "base64", "0x",
}

// scannerAgents are User-Agent fragments of common scanning tools.
var scannerAgents = []string{
	"sqlmap", "nikto", "nmap", "masscan", "zgrab",
	"gobuster", "dirb", "scanner",
}

// DetectionMetrics is a snapshot of security detection counters.
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags suspicious requests and resolves client IPs behind
// trusted proxies.
type Detector struct {
	flagged atomic.Int64
	badIP   atomic.Int64
	proxies []*net.IPNet
}

// NewDetector creates a detector trusting loopback and RFC 1918 proxies.
func NewDetector() *Detector {
	ranges := []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	proxies := make([]*net.IPNet, 0, len(ranges))
	for _, cidr := range ranges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("bad built-in proxy range " + cidr)
		}
		proxies = append(proxies, network)
	}
	return &Detector{proxies: proxies}
}

// AddTrustedProxy extends the set of networks allowed to set forwarding
// headers. Call during setup, before the detector serves requests.
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.proxies = append(d.proxies, network)
	return nil
}

// DetectSuspiciousRequest reports whether the request matches a known probe
// or injection shape, counting hits for the metrics endpoint.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	if !suspicious(r) {
		return false
	}
	d.flagged.Add(1)
	return true
}

func suspicious(r *http.Request) bool {
	if containsAttackPattern(strings.ToLower(r.URL.Path)) {
		return true
	}
	if containsAttackPattern(strings.ToLower(r.URL.RawQuery)) {
		return true
	}
	agent := strings.ToLower(r.Header.Get("User-Agent"))
	if slices.ContainsFunc(scannerAgents, func(name string) bool { return strings.Contains(agent, name) }) {
		return true
	}
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return true
	}
	if len(r.URL.String()) > maxURLLength {
		return true
	}

	// Both forwarding headers plus a long chain suggests header games.
	xff := r.Header.Get("X-Forwarded-For")
	return xff != "" && r.Header.Get("X-Real-IP") != "" && strings.Count(xff, ",") > 5
}

func containsAttackPattern(s string) bool {
	return slices.ContainsFunc(attackPatterns, func(p string) bool { return strings.Contains(s, p) })
}

// ExtractClientIP resolves the client address for logging and rate limiting.
// Forwarded headers are honored only when the direct peer is a trusted
// proxy; otherwise the peer address wins.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	direct := directPeer(r)
	ip := net.ParseIP(direct)
	if ip == nil {
		d.badIP.Add(1)
		return direct
	}
	if !d.trusted(ip) {
		return direct
	}
	if client, ok := d.forwardedClient(r); ok {
		return client
	}
	return direct
}

func directPeer(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedClient pulls the client address out of the forwarding headers.
// X-Forwarded-For lists the client first, proxies after.
func (d *Detector) forwardedClient(r *http.Request) (string, bool) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first, true
		}
		d.badIP.Add(1)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri, true
		}
		d.badIP.Add(1)
	}
	return "", false
}

func (d *Detector) trusted(ip net.IP) bool {
	return slices.ContainsFunc(d.proxies, func(n *net.IPNet) bool { return n.Contains(ip) })
}

// GetMetrics returns current security metrics.
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.flagged.Load(),
		InvalidIPAttempts:  d.badIP.Load(),
	}
}
