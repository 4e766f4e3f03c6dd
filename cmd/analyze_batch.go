package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashlens/internal/dataset"
	"github.com/KaramelBytes/crashlens/internal/logging"
	"github.com/KaramelBytes/crashlens/internal/project"
	"github.com/KaramelBytes/crashlens/internal/utils"
)

var (
	abFlags     analyzeFlags
	abOutputDir string
	abQuiet     bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files with progress and optional project attachment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		format, err := abFlags.format()
		if err != nil {
			return err
		}
		var p *project.Project
		if abFlags.Project != "" {
			if p, err = loadProjectByName(abFlags.Project); err != nil {
				return err
			}
		}
		dsOpt, err := abFlags.datasetOptions(cmd)
		if err != nil {
			return err
		}
		aOpt, err := abFlags.analysisOptions(cmd, p)
		if err != nil {
			return err
		}
		if abOutputDir != "" {
			if err := utils.EnsureDir(abOutputDir); err != nil {
				return err
			}
		}

		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			rep, err := analyzeFile(path, dsOpt, aOpt)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			out, err := renderReport(rep, format)
			if err != nil {
				return err
			}

			written := false
			if abOutputDir != "" {
				target := filepath.Join(abOutputDir, utils.Slug(rep.Name)+reportExt(format))
				outFile := utils.UniquePath(target)
				if outFile != target && !abQuiet {
					fmt.Printf("⚠ Detected existing report, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
				}
				if err := writeOutput(outFile, out); err != nil {
					return err
				}
				if !abQuiet {
					fmt.Printf("✓ Wrote analysis to %s\n", outFile)
				}
				written = true
			}
			if p != nil {
				outFile, run, err := attachToProject(cmd.Context(), p, path, rep, out, format, abFlags.Desc)
				if err != nil {
					return err
				}
				if !abQuiet {
					fmt.Printf("✓ Added analysis to project '%s' as %s (run %s)\n", p.Name, filepath.Base(outFile), run.ID)
				}
				written = true
			}
			if abFlags.SQLite != "" {
				if err := saveRun(cmd.Context(), abFlags.SQLite, newRunID(), time.Now(), rep); err != nil {
					return err
				}
			}
			if !written && !abQuiet {
				fmt.Println(string(out))
			}
		}
		if abFlags.SQLite != "" && !abQuiet {
			fmt.Printf("✓ Saved %d run(s) to %s\n", total, abFlags.SQLite)
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and unsupported formats, and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			if !dataset.Supported(m) {
				logging.Warn().Str("file", m).Msg("skipping unsupported file type")
				continue
			}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abFlags.register(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutputDir, "output-dir", "", "write one report per input into this directory")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
