package version

import (
	"runtime"
	"strings"
	"testing"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = v, c, d })
	Version, Commit, BuildDate = version, commit, date
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"abc", "0.9.1"},
		{"1234567", "0.9.1"},
		{"12345678", "0.9.1 (1234567)"},
		{"f00dfacecafe", "0.9.1 (f00dfac)"},
	}

	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			withBuild(t, "0.9.1", tt.commit, "unknown")
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	withBuild(t, "1.2.3", "abcdef123456", "2024-01-15")

	want := "ruleforge 1.2.3\nCommit: abcdef123456\nBuilt: 2024-01-15\nGo: " + runtime.Version()
	if got := Full(); got != want {
		t.Errorf("Full() = %q, want %q", got, want)
	}
}

func TestResolveCommitFallback(t *testing.T) {
	withBuild(t, "1.0.0", "unknown", "unknown")

	// Test binaries carry no VCS stamp, so the placeholder survives.
	if got := resolveCommit(); got == "" {
		t.Error("resolveCommit() should never be empty")
	}
	if !strings.HasPrefix(Full(), "ruleforge 1.0.0\nCommit: ") {
		t.Errorf("Full() = %q", Full())
	}
}

func TestVersionIsSemver(t *testing.T) {
	if parts := strings.Split(Version, "."); len(parts) != 3 {
		t.Errorf("Version %q is not MAJOR.MINOR.PATCH", Version)
	}
}
