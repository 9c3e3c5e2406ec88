package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("REPORTEDIT_LISTEN", "")
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:8090" {
		t.Errorf("listen: %q", cfg.Listen)
	}
	if cfg.Editor.SettleDelay != 300*time.Millisecond {
		t.Errorf("settle delay: %v", cfg.Editor.SettleDelay)
	}
	if cfg.Store.MaxHistory != 20 {
		t.Errorf("max history: %d", cfg.Store.MaxHistory)
	}
	if cfg.Browser.HealthInterval != 30*time.Second {
		t.Errorf("health interval: %v", cfg.Browser.HealthInterval)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("REPORTEDIT_LISTEN", "")
	path := filepath.Join(t.TempDir(), "reportedit.yaml")
	yaml := `
listen: ":9000"
browser:
  remote: ws://chrome:9222/devtools/browser/abc
  stealth: true
  resource_blocking: [image, font]
editor:
  settle_delay: 1s
store:
  path: data/reports.db
  max_history: 5
sinks:
  - type: webhook
    url: https://hooks.example.com/reports
  - type: dir
    dir: out
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9000" || !cfg.Browser.Stealth || len(cfg.Browser.ResourceBlocking) != 2 {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.Editor.SettleDelay != time.Second || cfg.Store.MaxHistory != 5 {
		t.Fatalf("editor/store: %+v %+v", cfg.Editor, cfg.Store)
	}
	if cfg.Sinks[0].Retries != 3 || cfg.Sinks[0].Backoff != 500*time.Millisecond {
		t.Errorf("webhook defaults: %+v", cfg.Sinks[0])
	}
	if cfg.Sinks[1].Retries != 0 {
		t.Errorf("dir sink got webhook defaults: %+v", cfg.Sinks[1])
	}
}

func TestListenEnvOverride(t *testing.T) {
	t.Setenv("REPORTEDIT_LISTEN", "0.0.0.0:7000")
	cfg, err := Parse([]byte(`listen: ":9000"`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:7000" {
		t.Fatalf("listen: %q", cfg.Listen)
	}
}

func TestParse_InvalidSink(t *testing.T) {
	for _, y := range []string{
		"sinks: [{type: webhook}]",
		"sinks: [{type: dir}]",
		"sinks: [{type: nats, url: nats://x}]",
	} {
		if _, err := Parse([]byte(y)); err == nil || !strings.HasPrefix(err.Error(), "config: sinks[0]") {
			t.Errorf("%s: err = %v", y, err)
		}
	}
}
