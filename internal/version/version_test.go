package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.BuildDate == "" || info.GitCommit == "" {
		t.Errorf("Get() left a field empty: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "clean",
			info: Info{Version: "v1.2.0", BuildDate: "2026-01-01", GitCommit: "abc123", GoVersion: "go1.26.1"},
			want: "v1.2.0 (built 2026-01-01, commit abc123, go1.26.1)",
		},
		{
			name: "modified tree",
			info: Info{Version: "dev", BuildDate: "unknown", GitCommit: "abc123", GoVersion: "go1.26.1", Modified: true},
			want: "dev (built unknown, commit abc123+dirty, go1.26.1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	got := UserAgent("vlpctl")
	if !strings.HasPrefix(got, "vlpctl/") || got == "vlpctl/" {
		t.Errorf("UserAgent() = %q", got)
	}
}
