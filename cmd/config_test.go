package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "github.com/KaramelBytes/crashlens/internal/config"
)

func TestConfigSetPersists(t *testing.T) {
	home := withTempHome(t)

	runCmd(t, "config", "set", "top_n", "12")
	runCmd(t, "config", "set", "model_terms", "borough, tod")
	runCmd(t, "config", "set", "log_format", "JSON")

	b, err := os.ReadFile(filepath.Join(home, ".crashlens", "config.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(b), "top_n: 12") {
		t.Fatalf("expected top_n in saved config:\n%s", b)
	}

	c, err := cfgpkg.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if c.TopN != 12 || c.LogFormat != "json" {
		t.Fatalf("unexpected config: top_n=%d log_format=%s", c.TopN, c.LogFormat)
	}
	if strings.Join(c.ModelTerms, ",") != "Borough,TimeOfDay" {
		t.Fatalf("unexpected model terms: %v", c.ModelTerms)
	}
}

func TestConfigSetRejectsBadValues(t *testing.T) {
	withTempHome(t)
	for _, args := range [][]string{
		{"config", "set", "top_n", "-1"},
		{"config", "set", "confidence_level", "1.5"},
		{"config", "set", "log_level", "loud"},
		{"config", "set", "model_terms", "weather"},
		{"config", "set", "api_key", "x"},
	} {
		if err := execCmd(args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}
