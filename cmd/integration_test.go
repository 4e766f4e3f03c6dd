package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/crashlens/internal/project"
	"github.com/KaramelBytes/crashlens/internal/store"
)

// resetFlags restores every flag of c and its subcommands to its default so
// values do not leak between invocations in one test binary.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func execCmd(args ...string) error {
	resetFlags(rootCmd)
	cfg = nil
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// withTempHome isolates config and projects under a fresh HOME.
func withTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	t.Cleanup(func() { os.Setenv("HOME", oldHome) })
	os.Setenv("HOME", home)
	return home
}

// writeIncidentCSV writes a collision export with enough spread across
// boroughs, months, years and hours for every default model term.
func writeIncidentCSV(t *testing.T, path string) {
	t.Helper()
	boroughs := []string{"BRONX", "BROOKLYN", "MANHATTAN", "QUEENS", "STATEN ISLAND"}
	var b strings.Builder
	b.WriteString("CRASH DATE,CRASH TIME,BOROUGH,ON STREET NAME\n")
	for i := 0; i < 400; i++ {
		month := i%12 + 1
		year := 2019 + i%2
		line := fmt.Sprintf("%02d/%02d/%04d,%02d:%02d,%s,STREET %d\n",
			month, i%28+1, year, (i*7)%24, i%60, boroughs[i%len(boroughs)], i)
		for r := 0; r <= i%3; r++ {
			b.WriteString(line)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func TestCLI_AnalyzeToFile(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "crashes.csv")
	writeIncidentCSV(t, src)
	out := filepath.Join(home, "report.md")

	runCmd(t, "analyze", src, "-o", out, "--top", "3")

	body, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{"[DATASET SUMMARY]", "[COUNTS BY BOROUGH]", "[MODEL]", "[TOP FACTORS]"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("report missing %q", want)
		}
	}
	top := strings.SplitN(string(body), "[TOP FACTORS]\n", 2)[1]
	top = strings.SplitN(top, "(* p <", 2)[0]
	if n := strings.Count(top, "\n"); n != 3 {
		t.Fatalf("expected --top 3 to list 3 factors, got %d:\n%s", n, top)
	}
}

func TestCLI_AnalyzeJSONNoModel(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "crashes.csv")
	writeIncidentCSV(t, src)
	out := filepath.Join(home, "report.json")

	runCmd(t, "analyze", src, "-o", out, "--format", "json", "--no-model")

	body, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(body), `"groups"`) {
		t.Fatalf("expected grouped counts in JSON report")
	}
	if strings.Contains(string(body), `"coefficients"`) {
		t.Fatalf("expected no model in JSON report")
	}
}

func TestCLI_AnalyzeInfeasibleFitFails(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "tiny.csv")
	csv := "CRASH DATE,CRASH TIME,BOROUGH\n2020-07-04,14:30,BROOKLYN\n2020-07-05,02:00,QUEENS\n"
	if err := os.WriteFile(src, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	err := execCmd("analyze", src, "-o", filepath.Join(home, "out.md"))
	if err == nil {
		t.Fatalf("expected infeasible fit error, got nil")
	}
	if !strings.Contains(err.Error(), "--no-model") {
		t.Fatalf("expected --no-model hint, got %v", err)
	}
	// Descriptive counts still work.
	runCmd(t, "analyze", src, "-o", filepath.Join(home, "out.md"), "--no-model")
}

func TestCLI_Init_Add_AnalyzeDataset(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "crashes.csv")
	writeIncidentCSV(t, src)

	runCmd(t, "init", "itest", "-d", "integration test")
	runCmd(t, "add", "-p", "itest", src, "--desc", "2019-2020 export")
	runCmd(t, "project", "set-top-n", "4", "-p", "itest")
	runCmd(t, "analyze", "-p", "itest", "--dataset", "crashes.csv")

	dir, err := resolveProjectDirByName("itest")
	if err != nil {
		t.Fatalf("resolve project: %v", err)
	}
	p, err := project.LoadProject(dir)
	if err != nil {
		t.Fatalf("load project: %v", err)
	}
	if len(p.Datasets) != 1 {
		t.Fatalf("expected 1 dataset, got %d", len(p.Datasets))
	}
	if p.Config.TopN != 4 {
		t.Fatalf("expected project top N 4, got %d", p.Config.TopN)
	}
	if len(p.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(p.Runs))
	}
	run := p.Runs[0]
	if run.DatasetID == "" || run.RSquared == nil {
		t.Fatalf("expected run linked to dataset with a fitted model: %+v", run)
	}
	if _, err := os.Stat(filepath.Join(p.ReportsDir(), "crashes.report.md")); err != nil {
		t.Fatalf("missing project report: %v", err)
	}

	st, err := store.Open(context.Background(), p.StorePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	coefs, err := st.LoadCoefficients(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("load coefficients: %v", err)
	}
	if len(coefs) == 0 {
		t.Fatalf("expected coefficients saved for run %s", run.ID)
	}

	runCmd(t, "list", "--runs", "-p", "itest")
	runCmd(t, "runs", "-p", "itest", "--show", run.ID)
}

func TestCLI_AnalyzeSQLite(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "crashes.csv")
	writeIncidentCSV(t, src)
	db := filepath.Join(home, "db", "runs.db")

	runCmd(t, "analyze", src, "-o", filepath.Join(home, "r.md"), "--sqlite", db, "--terms", "borough,time_of_day")

	st, err := store.Open(context.Background(), db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), "crashes.csv")
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	coefs, err := st.LoadCoefficients(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("load coefficients: %v", err)
	}
	for _, c := range coefs {
		if !strings.HasPrefix(c.Term, "Borough=") && !strings.HasPrefix(c.Term, "TimeOfDay=") {
			t.Fatalf("unexpected term %s with --terms borough,time_of_day", c.Term)
		}
	}
}

func TestCLI_AnalyzeRejectsBadFlags(t *testing.T) {
	home := withTempHome(t)
	src := filepath.Join(home, "crashes.csv")
	writeIncidentCSV(t, src)

	cases := [][]string{
		{"analyze", src, "--format", "xml"},
		{"analyze", src, "--delimiter", "#"},
		{"analyze", src, "--terms", "weather"},
		{"analyze"},
		{"analyze", "--dataset", "x"},
	}
	for _, args := range cases {
		if err := execCmd(args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestSelectPrecedence(t *testing.T) {
	gc := effectiveConfig()
	gc.TopN = 7
	gc.ModelTerms = []string{"borough"}
	p := &project.Project{Config: &project.ProjectConfig{TopN: 5, ModelTerms: []string{"season"}}}

	if got := selectTopN(p, gc, 3); got != 3 {
		t.Fatalf("expected flag top N, got %d", got)
	}
	if got := selectTopN(p, gc, 0); got != 5 {
		t.Fatalf("expected project top N, got %d", got)
	}
	p.Config.TopN = 0
	if got := selectTopN(p, gc, 0); got != 7 {
		t.Fatalf("expected config top N, got %d", got)
	}

	terms, err := selectTerms(p, gc, nil)
	if err != nil || len(terms) != 1 || terms[0] != "Season" {
		t.Fatalf("expected project terms, got %v (%v)", terms, err)
	}
	p.Config.ModelTerms = nil
	terms, err = selectTerms(p, gc, nil)
	if err != nil || len(terms) != 1 || terms[0] != "Borough" {
		t.Fatalf("expected config terms, got %v (%v)", terms, err)
	}

	dense := true
	p.Config.DenseGrid = &dense
	if !selectDense(p, gc, false, false) {
		t.Fatalf("expected project dense override")
	}
	if selectDense(p, gc, false, true) {
		t.Fatalf("expected explicit --dense=false to win")
	}
}

func TestParseDelimiter(t *testing.T) {
	for in, want := range map[string]rune{"": 0, ",": ',', "tab": '\t', ";": ';', "pipe": '|'} {
		got, err := parseDelimiter(in)
		if err != nil || got != want {
			t.Fatalf("parseDelimiter(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseDelimiter("::"); err == nil {
		t.Fatalf("expected error for unsupported delimiter")
	}
}
