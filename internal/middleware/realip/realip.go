// Package realip resolves the real client IP when the service runs behind
// a trusted reverse proxy.
package realip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const clientIPKey contextKey = "client_ip"

// Config holds the configuration for the real IP middleware
type Config struct {
	// TrustProxy enables X-Forwarded-For header parsing
	TrustProxy bool
	// TrustedProxies is a list of CIDR ranges (or bare IPs) for trusted proxies
	TrustedProxies []string
}

// Middleware returns an HTTP middleware that stores the resolved client IP
// in the request context. Forwarding headers are honored only when the
// direct peer is a trusted proxy.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	trusted := parseTrusted(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolve(r, cfg.TrustProxy, trusted)
			ctx := context.WithValue(r.Context(), clientIPKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP retrieves the resolved client IP from the request context.
// Falls back to RemoteAddr if the middleware did not run.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}

func parseTrusted(cfg Config) []*net.IPNet {
	if !cfg.TrustProxy {
		return nil
	}
	var nets []*net.IPNet
	for _, entry := range cfg.TrustedProxies {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, network)
			continue
		}
		// Bare IPs get a host mask
		if ip := net.ParseIP(entry); ip != nil {
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			mask := net.CIDRMask(bits, bits)
			nets = append(nets, &net.IPNet{IP: ip.Mask(mask), Mask: mask})
		}
	}
	return nets
}

func resolve(r *http.Request, trustProxy bool, trusted []*net.IPNet) string {
	peer := stripPort(r.RemoteAddr)
	if !trustProxy || !isTrusted(peer, trusted) {
		return peer
	}

	// X-Forwarded-For lists the client first, then each proxy. Walk it from
	// the right and take the first hop that is not one of ours.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) {
				return hop
			}
		}
		// Every hop is a trusted proxy; the leftmost is the client.
		return strings.TrimSpace(hops[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return peer
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func isTrusted(ipStr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
