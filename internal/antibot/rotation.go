// Package antibot carries the crawl-survival policies: proxy and user-agent
// rotation, randomized request pacing, and block/CAPTCHA detection.
package antibot

import (
	"bufio"
	"os"
	"strings"
)

// defaultUserAgents backs the rotation when no user-agent file is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

// Rotation keeps two independent round-robin cursors over a proxy list and a
// user-agent list. Rotation order is deterministic; randomness lives in the
// RateLimiter, not here. One crawl session accesses it sequentially, so no
// locking.
type Rotation struct {
	proxies    []string
	userAgents []string
	proxyIdx   int
	uaIdx      int
}

// NewRotation builds a rotation policy. An empty user-agent list falls back
// to the built-in defaults; an empty proxy list means direct connections.
func NewRotation(proxies, userAgents []string) *Rotation {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	return &Rotation{
		proxies:    proxies,
		userAgents: userAgents,
		proxyIdx:   -1,
		uaIdx:      -1,
	}
}

// NextProxy advances the proxy cursor and returns the proxy, or "" when no
// proxies are configured.
func (r *Rotation) NextProxy() string {
	if len(r.proxies) == 0 {
		return ""
	}
	r.proxyIdx = (r.proxyIdx + 1) % len(r.proxies)
	return r.proxies[r.proxyIdx]
}

// NextUserAgent advances the user-agent cursor and returns the agent.
func (r *Rotation) NextUserAgent() string {
	if len(r.userAgents) == 0 {
		return ""
	}
	r.uaIdx = (r.uaIdx + 1) % len(r.userAgents)
	return r.userAgents[r.uaIdx]
}

// HasProxies reports whether any proxies were configured.
func (r *Rotation) HasProxies() bool {
	return len(r.proxies) > 0
}

// LoadLines reads non-empty trimmed lines from a file. A missing or
// unreadable file degrades to an empty list rather than an error: running
// without proxies is a supported mode.
func LoadLines(path string) []string {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
