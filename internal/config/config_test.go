package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tangle.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := &Config{
		Debug: false,
		Devtools: DevtoolsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6363",
		},
		Store:   StoreConfig{Path: "tangle.db"},
		Metrics: MetricsConfig{Namespace: "tangle"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := writeConfig(t, `
debug: true
devtools:
  enabled: true
  addr: "0.0.0.0:7000"
store:
  path: "/var/lib/app/state.db"
metrics:
  namespace: "myapp"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not loaded")
	}
	if !cfg.Devtools.Enabled || cfg.Devtools.Addr != "0.0.0.0:7000" {
		t.Errorf("devtools = %+v", cfg.Devtools)
	}
	if cfg.Store.Path != "/var/lib/app/state.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Metrics.Namespace != "myapp" {
		t.Errorf("metrics.namespace = %q", cfg.Metrics.Namespace)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := writeConfig(t, "debug: true\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not loaded")
	}
	if cfg.Devtools.Addr != "127.0.0.1:6363" {
		t.Errorf("devtools.addr = %q, want default", cfg.Devtools.Addr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, "metrics:\n  namespace: fromfile\n")
	t.Setenv("TANGLE_METRICS_NAMESPACE", "fromenv")
	t.Setenv("TANGLE_DEBUG", "true")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Metrics.Namespace != "fromenv" {
		t.Errorf("namespace = %q, want env override", cfg.Metrics.Namespace)
	}
	if !cfg.Debug {
		t.Error("TANGLE_DEBUG not applied")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := writeConfig(t, "debug: [not: closed\n")

	if _, err := Load(dir); err == nil {
		t.Error("malformed yaml did not error")
	}
}

func TestValidateRejectsBadAddr(t *testing.T) {
	dir := writeConfig(t, `
devtools:
  enabled: true
  addr: "no-port-here"
`)
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "devtools.addr") {
		t.Errorf("err = %v, want devtools.addr validation failure", err)
	}
}

func TestValidateIgnoresAddrWhenDisabled(t *testing.T) {
	cfg := &Config{
		Devtools: DevtoolsConfig{Enabled: false, Addr: "garbage"},
		Store:    StoreConfig{Path: "x.db"},
		Metrics:  MetricsConfig{Namespace: "t"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsEmptyStorePath(t *testing.T) {
	cfg := &Config{
		Store:   StoreConfig{Path: ""},
		Metrics: MetricsConfig{Namespace: "t"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("empty store.path accepted")
	}
}
