package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Store != "file" || c.PreviewLimit != 100 || c.MaxUploadMB != 10 || c.HeaderPolicy != "drop" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if want := filepath.Join(home, ".sheetlens", "data"); c.DataDir != want {
		t.Fatalf("data dir = %s, want %s", c.DataDir, want)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Set("preview_limit", "25"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set("store", "memory"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.PreviewLimit != 25 || got.Store != "memory" {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHEETLENS_HISTORY_LIMIT", "5")
	t.Setenv("SHEETLENS_LOG_FORMAT", "text")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HistoryLimit != 5 || c.LogFormat != "text" {
		t.Fatalf("env not applied: %+v", c)
	}
}

func TestSetValidation(t *testing.T) {
	c := &Global{}
	cases := []struct {
		key, value string
		wantErr    bool
	}{
		{"store", "postgres", false},
		{"store", "mysql", true},
		{"header_policy", "placeholder", false},
		{"header_policy", "keep", true},
		{"log_format", "xml", true},
		{"chart_width", "800", false},
		{"chart_width", "-1", true},
		{"max_upload_mb", "ten", true},
		{"colour", "red", true},
	}
	for _, tc := range cases {
		err := c.Set(tc.key, tc.value)
		if (err != nil) != tc.wantErr {
			t.Errorf("Set(%q, %q) err = %v, wantErr %v", tc.key, tc.value, err, tc.wantErr)
		}
	}
	if c.Store != "postgres" || c.ChartWidth != 800 || c.HeaderPolicy != "placeholder" {
		t.Fatalf("valid values not applied: %+v", c)
	}
	if err := c.Set("nope", "x"); err == nil || !strings.Contains(err.Error(), "data_dir") {
		t.Fatalf("expected key list in error, got %v", err)
	}
}
