package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashlens/internal/dataset"
	"github.com/KaramelBytes/crashlens/internal/project"
)

var (
	anaFlags   analyzeFlags
	anaDataset string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze an incident dataset and rank contributing factors",
	Long: `Analyze an incident export (CSV/TSV/XLSX): derive season, time of day and
weekend flags, tally incidents per dimension, group them by (year, borough,
month, time of day, weekend) and fit a linear model of the group counts.

The report is printed to stdout unless --output or --project is given. With
--project the report is stored under the project's reports directory and the
run is saved to the project's SQLite history. A registered dataset can be
analyzed by reference with --dataset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := anaFlags.format()
		if err != nil {
			return err
		}
		var p *project.Project
		if anaFlags.Project != "" {
			if p, err = loadProjectByName(anaFlags.Project); err != nil {
				return err
			}
		}

		dsOpt, err := anaFlags.datasetOptions(cmd)
		if err != nil {
			return err
		}
		var path string
		switch {
		case len(args) == 1 && anaDataset != "":
			return fmt.Errorf("pass either a file or --dataset, not both")
		case len(args) == 1:
			path = args[0]
		case anaDataset != "":
			if p == nil {
				return fmt.Errorf("--project is required with --dataset")
			}
			d, err := p.FindDataset(anaDataset)
			if err != nil {
				return err
			}
			path = d.Path
			dsOpt = mergeDatasetOptions(d.LoadOptions(), dsOpt, cmd)
		default:
			return fmt.Errorf("a file argument or --dataset is required")
		}

		aOpt, err := anaFlags.analysisOptions(cmd, p)
		if err != nil {
			return err
		}
		rep, err := analyzeFile(path, dsOpt, aOpt)
		if err != nil {
			return err
		}
		out, err := renderReport(rep, format)
		if err != nil {
			return err
		}

		// Decide where to write: --output path, or attach to project, or stdout
		written := false
		if anaFlags.Output != "" {
			if err := writeOutput(anaFlags.Output, out); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote analysis to %s\n", anaFlags.Output)
			written = true
		}
		if p != nil {
			outFile, run, err := attachToProject(cmd.Context(), p, path, rep, out, format, anaFlags.Desc)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Added analysis to project '%s' as %s (run %s)\n", p.Name, filepath.Base(outFile), run.ID)
			written = true
		}
		if anaFlags.SQLite != "" {
			id := newRunID()
			if err := saveRun(cmd.Context(), anaFlags.SQLite, id, time.Now(), rep); err != nil {
				return err
			}
			fmt.Printf("✓ Saved run %s to %s\n", id, anaFlags.SQLite)
		}
		if !written {
			fmt.Println(string(out))
		}
		return nil
	},
}

// mergeDatasetOptions starts from a registered dataset's options and applies
// any column or sheet flags given on this invocation.
func mergeDatasetOptions(reg, cur dataset.Options, cmd *cobra.Command) dataset.Options {
	out := cur
	out.DateColumn, out.TimeColumn, out.BoroughColumn = reg.DateColumn, reg.TimeColumn, reg.BoroughColumn
	out.SheetName, out.SheetIndex = reg.SheetName, reg.SheetIndex
	fl := cmd.Flags()
	if fl.Changed("date-col") {
		out.DateColumn = cur.DateColumn
	}
	if fl.Changed("time-col") {
		out.TimeColumn = cur.TimeColumn
	}
	if fl.Changed("borough-col") {
		out.BoroughColumn = cur.BoroughColumn
	}
	if fl.Changed("sheet-name") || fl.Changed("sheet-index") {
		out.SheetName, out.SheetIndex = cur.SheetName, cur.SheetIndex
	}
	return out
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaFlags.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaFlags.Output, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().StringVar(&anaDataset, "dataset", "", "analyze a dataset registered with --project (name or id)")
}
