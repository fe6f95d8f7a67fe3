package antibot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRotation_RoundRobinWraps(t *testing.T) {
	r := NewRotation([]string{"p1", "p2"}, []string{"ua1", "ua2", "ua3"})

	got := []string{r.NextProxy(), r.NextProxy(), r.NextProxy()}
	want := []string{"p1", "p2", "p1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected proxies %v, got %v", want, got)
		}
	}

	agents := []string{r.NextUserAgent(), r.NextUserAgent(), r.NextUserAgent(), r.NextUserAgent()}
	if agents[0] != "ua1" || agents[3] != "ua1" {
		t.Fatalf("expected user agents to wrap, got %v", agents)
	}
}

func TestRotation_CursorsAreIndependent(t *testing.T) {
	r := NewRotation([]string{"p1", "p2"}, []string{"ua1", "ua2"})

	r.NextProxy()
	r.NextProxy()
	r.NextProxy()
	if ua := r.NextUserAgent(); ua != "ua1" {
		t.Fatalf("proxy cursor leaked into user-agent cursor, got %s", ua)
	}
}

func TestRotation_EmptyProxiesDegrade(t *testing.T) {
	r := NewRotation(nil, []string{"ua1"})
	if proxy := r.NextProxy(); proxy != "" {
		t.Fatalf("expected empty proxy, got %q", proxy)
	}
	if r.HasProxies() {
		t.Fatalf("expected no proxies configured")
	}
}

func TestRotation_EmptyUserAgentsFallBackToDefaults(t *testing.T) {
	r := NewRotation(nil, nil)
	first := r.NextUserAgent()
	if first == "" {
		t.Fatalf("expected built-in default user agent")
	}
	if first != defaultUserAgents[0] {
		t.Fatalf("expected first default agent, got %q", first)
	}
}

func TestLoadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "p1:8080\n\n  p2:8080  \n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	lines := LoadLines(path)
	if len(lines) != 2 || lines[0] != "p1:8080" || lines[1] != "p2:8080" {
		t.Fatalf("unexpected lines: %v", lines)
	}

	if lines := LoadLines(filepath.Join(t.TempDir(), "missing.txt")); lines != nil {
		t.Fatalf("expected nil for missing file, got %v", lines)
	}
	if lines := LoadLines(""); lines != nil {
		t.Fatalf("expected nil for empty path, got %v", lines)
	}
}
