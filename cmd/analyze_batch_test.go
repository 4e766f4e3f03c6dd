package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/crashlens/internal/project"
)

func TestAnalyzeBatch_AttachWithCollisionSuffix(t *testing.T) {
	home := withTempHome(t)

	// Two exports with the same basename in different directories
	d1 := filepath.Join(home, "d1")
	d2 := filepath.Join(home, "d2")
	for _, d := range []string{d1, d2} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
		writeIncidentCSV(t, filepath.Join(d, "crashes.csv"))
	}
	// Unsupported files matched by the glob are skipped.
	if err := os.WriteFile(filepath.Join(d1, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	runCmd(t, "init", "batchp", "-d", "batch project")
	runCmd(t, "analyze-batch", filepath.Join(home, "d*", "*"), "-p", "batchp", "--quiet", "--no-model")

	projDir, err := resolveProjectDirByName("batchp")
	if err != nil {
		t.Fatalf("resolve project: %v", err)
	}
	p, err := project.LoadProject(projDir)
	if err != nil {
		t.Fatalf("load project: %v", err)
	}
	if len(p.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(p.Runs))
	}
	b1 := filepath.Join(p.ReportsDir(), "crashes.report.md")
	b2 := filepath.Join(p.ReportsDir(), "crashes__2.report.md")
	for _, f := range []string{b1, b2} {
		body, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("missing report %s: %v", f, err)
		}
		if strings.Contains(string(body), "[TOP FACTORS]") {
			t.Fatalf("expected no model section content in %s", f)
		}
		if !strings.Contains(string(body), "[GROUPED COUNTS]") {
			t.Fatalf("expected grouped counts in %s", f)
		}
	}
}

func TestAnalyzeBatch_OutputDir(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "crashes.csv")
	writeIncidentCSV(t, src)
	outDir := filepath.Join(home, "out")

	runCmd(t, "analyze-batch", src, src, "--output-dir", outDir, "--format", "json", "--quiet")
	// Duplicate arguments are analyzed once.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "crashes.report.json" {
		t.Fatalf("unexpected outputs: %v", entries)
	}

	runCmd(t, "analyze-batch", src, "--output-dir", outDir, "--format", "json", "--quiet")
	if _, err := os.Stat(filepath.Join(outDir, "crashes__2.report.json")); err != nil {
		t.Fatalf("expected collision-suffixed report: %v", err)
	}
}

func TestAnalyzeBatch_NoMatches(t *testing.T) {
	home := withTempHome(t)
	if err := execCmd("analyze-batch", filepath.Join(home, "missing", "*.csv")); err == nil {
		t.Fatalf("expected error when no files match")
	}
}
