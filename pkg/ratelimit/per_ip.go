package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default per-IP limiter values.
const (
	DefaultCleanupInterval = 1 * time.Minute
	DefaultEntryTTL        = 10 * time.Minute
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerIPConfig configures a PerIPLimiter.
type PerIPConfig struct {
	Rate            float64       // tokens per second
	Burst           int           // maximum bucket capacity
	TrustedProxies  []string      // CIDR ranges or single IPs of trusted proxies
	CleanupInterval time.Duration // how often idle entries are evicted
	EntryTTL        time.Duration // how long an entry lives without activity
}

// PerIPLimiter applies a token bucket per client IP.
type PerIPLimiter struct {
	limit           rate.Limit
	burst           int
	entries         map[string]*ipEntry
	mu              sync.Mutex
	stopCh          chan struct{}
	stoppedCh       chan struct{}
	stopOnce        sync.Once
	trustedProxies  []*net.IPNet
	cleanupInterval time.Duration
	entryTTL        time.Duration
	now             func() time.Time
}

// NewPerIPLimiter creates a per-IP limiter and starts its cleanup goroutine.
// Call Stop when done.
func NewPerIPLimiter(cfg PerIPConfig) *PerIPLimiter {
	rps := cfg.Rate
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(rps * 2))
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	entryTTL := cfg.EntryTTL
	if entryTTL <= 0 {
		entryTTL = DefaultEntryTTL
	}

	rl := &PerIPLimiter{
		limit:           rate.Limit(rps),
		burst:           burst,
		entries:         make(map[string]*ipEntry),
		stopCh:          make(chan struct{}),
		stoppedCh:       make(chan struct{}),
		trustedProxies:  parseTrustedProxies(cfg.TrustedProxies),
		cleanupInterval: cleanupInterval,
		entryTTL:        entryTTL,
		now:             time.Now,
	}

	go rl.cleanup()

	return rl
}

func parseTrustedProxies(values []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				continue
			}
			if ip.To4() != nil {
				v += "/32"
			} else {
				v += "/128"
			}
		}
		if _, network, err := net.ParseCIDR(v); err == nil {
			nets = append(nets, network)
		}
	}
	return nets
}

// Burst returns the bucket capacity.
func (rl *PerIPLimiter) Burst() int {
	return rl.burst
}

// Allow consumes one token for ip. It returns whether the request may
// proceed, the tokens left, and seconds until the bucket is full again
// (when allowed) or until the next token (when denied).
func (rl *PerIPLimiter) Allow(ip string) (allowed bool, remaining int, resetSec int64) {
	now := rl.now()

	rl.mu.Lock()
	e, ok := rl.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[ip] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()

	allowed = e.limiter.AllowN(now, 1)
	tokens := e.limiter.TokensAt(now)

	if allowed {
		missing := float64(rl.burst) - tokens
		reset := int64(math.Ceil(missing / float64(rl.limit)))
		if reset < 0 {
			reset = 0
		}
		return true, int(math.Max(0, math.Floor(tokens))), reset
	}

	retry := int64(math.Ceil((1 - tokens) / float64(rl.limit)))
	if retry < 1 {
		retry = 1
	}
	return false, 0, retry
}

// ClientIP returns the client address of r. Forwarding headers are used
// only when the direct peer is a trusted proxy.
func (rl *PerIPLimiter) ClientIP(r *http.Request) string {
	remoteIP := extractRemoteIP(r.RemoteAddr)

	if rl.isTrustedProxy(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.IndexByte(xff, ','); idx != -1 {
				xff = xff[:idx]
			}
			if ip := strings.TrimSpace(xff); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	return remoteIP
}

// Len returns the number of tracked clients.
func (rl *PerIPLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *PerIPLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	<-rl.stoppedCh
}

func (rl *PerIPLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	defer close(rl.stoppedCh)

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PerIPLimiter) evictIdle() {
	cutoff := rl.now().Add(-rl.entryTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, ip)
		}
	}
}

func (rl *PerIPLimiter) isTrustedProxy(ip string) bool {
	if len(rl.trustedProxies) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range rl.trustedProxies {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// extractRemoteIP strips the port from RemoteAddr, if present.
func extractRemoteIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return ip
}
