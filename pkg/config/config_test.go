package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CFG_TEST_SET", "value")
	t.Setenv("CFG_TEST_EMPTY", "")

	cases := map[string]string{
		"$CFG_TEST_SET":                "value",
		"${CFG_TEST_SET}":              "value",
		"${CFG_TEST_SET:-fallback}":    "value",
		"${CFG_TEST_EMPTY:-fallback}":  "fallback",
		"${CFG_TEST_MISSING:-a b}":     "a b",
		"${CFG_TEST_MISSING}":          "",
		"port: ${CFG_TEST_PORT:-8080}": "port: 8080",
	}
	for in, want := range cases {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeFile(t, "port: ${CFG_TEST_PORT:-9000}\n")
	cfg := sample{Name: "default"}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 9000 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	var cfg sample
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("missing file should fail")
	}
}
