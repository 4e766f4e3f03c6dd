package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashlens/internal/analysis"
	cfgpkg "github.com/KaramelBytes/crashlens/internal/config"
	"github.com/KaramelBytes/crashlens/internal/dataset"
	"github.com/KaramelBytes/crashlens/internal/logging"
	"github.com/KaramelBytes/crashlens/internal/project"
	"github.com/KaramelBytes/crashlens/internal/store"
	"github.com/KaramelBytes/crashlens/internal/utils"
)

// analyzeFlags are shared by analyze and analyze-batch.
type analyzeFlags struct {
	Project    string
	Output     string
	Format     string
	SQLite     string
	Desc       string
	Delimiter  string
	SheetName  string
	SheetIndex int
	MaxRows    int
	TopN       int
	Terms      []string
	Dense      bool
	NoModel    bool
	DateCol    string
	TimeCol    string
	BoroughCol string
}

func (f *analyzeFlags) register(c *cobra.Command) {
	fl := c.Flags()
	fl.StringVarP(&f.Project, "project", "p", "", "project name to attach the report and run history")
	fl.StringVar(&f.Format, "format", "md", "report format: md|json")
	fl.StringVar(&f.SQLite, "sqlite", "", "also save the run to this SQLite database")
	fl.StringVar(&f.Desc, "desc", "", "description when registering the run with a project")
	fl.StringVar(&f.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	fl.StringVar(&f.SheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fl.IntVar(&f.SheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fl.IntVar(&f.MaxRows, "max-rows", 0, "maximum rows to process (0 = config value, unlimited by default)")
	fl.IntVar(&f.TopN, "top", 0, "number of ranked factors to report (0 = project/config default)")
	fl.StringSliceVar(&f.Terms, "terms", nil, "model terms: borough,season,time_of_day,is_weekend,is_summer,month,year (repeatable)")
	fl.BoolVar(&f.Dense, "dense", false, "fill unobserved key combinations with zero counts before fitting")
	fl.BoolVar(&f.NoModel, "no-model", false, "skip the regression and report descriptive counts only")
	fl.StringVar(&f.DateCol, "date-col", "", "date column header (default from config)")
	fl.StringVar(&f.TimeCol, "time-col", "", "time column header (default from config)")
	fl.StringVar(&f.BoroughCol, "borough-col", "", "borough column header (default from config)")
}

// datasetOptions resolves column names and reading limits: flags first, then
// global config.
func (f *analyzeFlags) datasetOptions(c *cobra.Command) (dataset.Options, error) {
	opt := columnOptions(f.DateCol, f.TimeCol, f.BoroughCol)
	d, err := parseDelimiter(f.Delimiter)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d
	opt.MaxRows = effectiveConfig().MaxRows
	if c.Flags().Changed("max-rows") {
		if f.MaxRows < 0 {
			return opt, fmt.Errorf("--max-rows must be >= 0, got %d", f.MaxRows)
		}
		opt.MaxRows = f.MaxRows
	}
	opt.SheetName = f.SheetName
	opt.SheetIndex = f.SheetIndex
	return opt, nil
}

// analysisOptions resolves model settings with flag > project > config precedence.
func (f *analyzeFlags) analysisOptions(c *cobra.Command, p *project.Project) (analysis.Options, error) {
	gc := effectiveConfig()
	opt := analysis.DefaultOptions()
	terms, err := selectTerms(p, gc, f.Terms)
	if err != nil {
		return opt, err
	}
	opt.Fit.Terms = terms
	if gc.ConfidenceLevel > 0 {
		opt.Fit.ConfidenceLevel = gc.ConfidenceLevel
	}
	if gc.SignificanceLevel > 0 {
		opt.Fit.SignificanceLevel = gc.SignificanceLevel
	}
	if c.Flags().Changed("top") && f.TopN < 0 {
		return opt, fmt.Errorf("--top must be >= 0, got %d", f.TopN)
	}
	opt.TopN = selectTopN(p, gc, f.TopN)
	opt.Dense = selectDense(p, gc, f.Dense, c.Flags().Changed("dense"))
	opt.SkipModel = f.NoModel
	return opt, nil
}

func (f *analyzeFlags) format() (string, error) {
	switch strings.ToLower(strings.TrimSpace(f.Format)) {
	case "", "md", "markdown":
		return "md", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported --format: %s (use md|json)", f.Format)
	}
}

// columnOptions overlays explicit column names on the configured defaults.
func columnOptions(date, tm, borough string) dataset.Options {
	gc := effectiveConfig()
	opt := dataset.Options{
		DateColumn:    gc.DateColumn,
		TimeColumn:    gc.TimeColumn,
		BoroughColumn: gc.BoroughColumn,
	}
	if date != "" {
		opt.DateColumn = date
	}
	if tm != "" {
		opt.TimeColumn = tm
	}
	if borough != "" {
		opt.BoroughColumn = borough
	}
	return opt
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab", `\t`:
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s", s)
	}
}

func selectTopN(p *project.Project, gc *cfgpkg.Global, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if p != nil && p.Config != nil && p.Config.TopN > 0 {
		return p.Config.TopN
	}
	if gc != nil && gc.TopN > 0 {
		return gc.TopN
	}
	return analysis.DefaultOptions().TopN
}

func selectTerms(p *project.Project, gc *cfgpkg.Global, explicit []string) ([]analysis.Term, error) {
	names := explicit
	if len(names) == 0 && p != nil && p.Config != nil {
		names = p.Config.ModelTerms
	}
	if len(names) == 0 && gc != nil {
		names = gc.ModelTerms
	}
	return analysis.ParseTerms(names)
}

func selectDense(p *project.Project, gc *cfgpkg.Global, explicit, changed bool) bool {
	if changed {
		return explicit
	}
	if p != nil && p.Config != nil && p.Config.DenseGrid != nil {
		return *p.Config.DenseGrid
	}
	return gc != nil && gc.DenseGrid
}

// analyzeFile loads one dataset and runs the full analysis. Loader warnings
// lead the report's notes. An infeasible model fit is a hard error.
func analyzeFile(path string, dsOpt dataset.Options, aOpt analysis.Options) (*analysis.Report, error) {
	start := time.Now()
	tbl, err := dataset.Load(path, dsOpt)
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("dataset", tbl.Name).
		Int("rows", tbl.Rows).
		Int("processed", tbl.Processed).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")

	rep, err := analysis.Run(tbl.Name, tbl.Records, aOpt)
	if err != nil {
		if analysis.IsInfeasible(err) {
			return nil, fmt.Errorf("%w\n  Hint: rerun with --no-model for counts only, or fit fewer factors with --terms", err)
		}
		return nil, err
	}
	rep.Warnings = append(append([]string{}, tbl.Warnings...), rep.Warnings...)
	return rep, nil
}

func renderReport(rep *analysis.Report, format string) ([]byte, error) {
	if format == "json" {
		return rep.JSON()
	}
	return []byte(rep.Markdown()), nil
}

func reportExt(format string) string {
	if format == "json" {
		return ".report.json"
	}
	return ".report.md"
}

// saveRun writes a report to the SQLite database at dbPath.
func saveRun(ctx context.Context, dbPath, runID string, createdAt time.Time, rep *analysis.Report) error {
	if err := utils.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return err
	}
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveReport(ctx, runID, rep.Name, createdAt, rep)
}

// attachToProject writes the rendered report under the project's reports
// directory, records the run in project.json and saves it to the project's
// run history database. The report file never overwrites an earlier one.
func attachToProject(ctx context.Context, p *project.Project, src string, rep *analysis.Report, data []byte, format, desc string) (string, *project.Run, error) {
	outDir := p.ReportsDir()
	if err := utils.EnsureDir(outDir); err != nil {
		return "", nil, err
	}
	base := utils.Slug(src)
	if rep.Name != filepath.Base(src) {
		// Sheet-qualified name: keep sheets of one workbook apart.
		base = utils.Slug(rep.Name)
	}
	outFile := utils.UniquePath(filepath.Join(outDir, base+reportExt(format)))
	if err := utils.SafeWriteFile(outFile, data); err != nil {
		return "", nil, fmt.Errorf("write project report: %w", err)
	}

	r := project.Run{
		Dataset:     rep.Name,
		ReportPath:  outFile,
		Groups:      len(rep.Groups),
		Description: strings.TrimSpace(desc),
		FitError:    rep.FitError,
	}
	if abs, err := filepath.Abs(src); err == nil {
		for _, d := range p.Datasets {
			if d.Path == abs {
				r.DatasetID = d.ID
				break
			}
		}
	}
	if rep.Model != nil {
		r.Significant = len(rep.Model.Significant())
		r2 := rep.Model.RSquared
		r.RSquared = &r2
	}
	run := p.RecordRun(r)
	if err := saveRun(ctx, p.StorePath(), run.ID, run.CreatedAt, rep); err != nil {
		return "", nil, err
	}
	if err := p.Save(); err != nil {
		return "", nil, err
	}
	return outFile, run, nil
}

func writeOutput(path string, data []byte) error {
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func newRunID() string { return uuid.NewString() }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
