package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
service:
  name: asubexec-test
jobs:
  beam-scan:
    exec: /usr/local/bin/scan
    args: ["--fast"]
    timeout: 5s
    inputs:
      A: {type: DOUBLE, value: ["1.5"]}
    outputs:
      A: {type: DOUBLE, count: 2}
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.LogLevel != "info" {
		t.Errorf("log_level = %q, want default info", cfg.Service.LogLevel)
	}
	if cfg.Service.TickInterval != time.Second {
		t.Errorf("tick_interval = %v, want default 1s", cfg.Service.TickInterval)
	}
	if cfg.RunLog.Path == "" {
		t.Error("run_log.path default missing")
	}
	if cfg.API.Enabled {
		t.Error("api enabled by default")
	}

	jc := cfg.Jobs["beam-scan"]
	if jc.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", jc.Timeout)
	}
}

func TestLoad_TimeoutDefaultAndClamp(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
jobs:
  no-timeout:
    exec: /bin/true
  tiny-timeout:
    exec: /bin/true
    timeout: 1ms
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Jobs["no-timeout"].Timeout; got != DefaultTimeout {
		t.Errorf("missing timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := cfg.Jobs["tiny-timeout"].Timeout; got != MinTimeout {
		t.Errorf("tiny timeout = %v, want clamped to %v", got, MinTimeout)
	}
}

func TestLoad_DirectoryDiscovery(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(minimalConfig), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir): %v", err)
	}
	if cfg.Service.Name != "asubexec-test" {
		t.Errorf("name = %q", cfg.Service.Name)
	}
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("SCAN_BIN", "/opt/scan")
	cfg, err := Load(writeConfig(t, `
jobs:
  scan:
    exec: ${SCAN_BIN}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Jobs["scan"].Exec; got != "/opt/scan" {
		t.Errorf("exec = %q, want /opt/scan", got)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "missing exec",
			yaml:    "jobs:\n  j:\n    timeout: 5s\n",
			wantSub: "exec is required",
		},
		{
			name: "too many args",
			yaml: `
jobs:
  j:
    exec: /bin/true
    args: ["1","2","3","4","5","6","7","8","9","10"]
`,
			wantSub: "exceeds the limit",
		},
		{
			name: "bad schedule",
			yaml: `
jobs:
  j:
    exec: /bin/true
    schedule: {every: sometimes}
`,
			wantSub: "invalid schedule interval",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantSub: "log_level",
		},
		{
			name: "unresolved api key",
			yaml: `
api:
  enabled: true
  listen: 127.0.0.1:0
  auth: {api_key: "${ASUBEXEC_NO_SUCH_VAR}"}
`,
			wantSub: "is not set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"5m", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"hourly", time.Hour, false},
		{"daily", 24 * time.Hour, false},
		{"-5m", 0, true},
		{"never", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseInterval(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
