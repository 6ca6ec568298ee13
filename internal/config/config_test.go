package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := NewConfig("/srv/skymirror")
	cfg.HTTP.Addr = ":9090"
	cfg.Identity.PLCHost = "https://plc.example"
	cfg.Identity.Concurrency = 8

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, cfg)
	}
}

func TestReadPartialConfig(t *testing.T) {
	in := strings.NewReader(`
data_dir = "/var/lib/skymirror"

[feed]
url = "wss://jetstream.example/subscribe"
`)
	m := &Manager{}
	cfg, err := m.Read(in)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.DataDir != "/var/lib/skymirror" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Feed.URL != "wss://jetstream.example/subscribe" {
		t.Errorf("Feed.URL = %q", cfg.Feed.URL)
	}
	// Unset sections are left zero; defaults are the caller's concern.
	if cfg.HTTP.Addr != "" {
		t.Errorf("HTTP.Addr = %q, want empty", cfg.HTTP.Addr)
	}
}

func TestReadInvalidConfig(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("not [valid toml")); err == nil {
		t.Errorf("Read() error = nil, want error")
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "skymirror.toml")
	cfg := NewConfig("/srv/skymirror")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.Sweep.IntervalMinutes != 60 {
		t.Errorf("Sweep.IntervalMinutes = %d, want 60", got.Sweep.IntervalMinutes)
	}

	if err := Init(path, cfg); err == nil {
		t.Errorf("Init() on existing file error = nil, want error")
	}
}
