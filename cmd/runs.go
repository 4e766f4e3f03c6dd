package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashlens/internal/store"
)

var (
	runsDB      string
	runsProject string
	runsDataset string
	runsShow    string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse analysis runs saved to a SQLite history",
	Long: `List runs saved with --sqlite or --project, newest first, or show the
ranked coefficients and grouped counts of one run with --show.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (runsDB == "") == (runsProject == "") {
			return fmt.Errorf("specify exactly one of --db or --project")
		}
		path := runsDB
		if runsProject != "" {
			p, err := loadProjectByName(runsProject)
			if err != nil {
				return err
			}
			path = p.StorePath()
		}
		if !fileExists(path) {
			return fmt.Errorf("no run history at %s", path)
		}
		ctx := cmd.Context()
		st, err := store.Open(ctx, path)
		if err != nil {
			return err
		}
		defer st.Close()

		if runsShow != "" {
			coefs, err := st.LoadCoefficients(ctx, runsShow)
			if err != nil {
				return err
			}
			groups, err := st.LoadGroupedCounts(ctx, runsShow)
			if err != nil {
				return err
			}
			if len(groups) == 0 && len(coefs) == 0 {
				return fmt.Errorf("run %s not found in %s", runsShow, path)
			}
			fmt.Printf("Run %s: %d grouped keys\n", runsShow, len(groups))
			if len(coefs) == 0 {
				fmt.Println("(no model)")
				return nil
			}
			for i, c := range coefs {
				mark := ""
				if c.Significant {
					mark = " *"
				}
				fmt.Printf("%d. %s: %+.4g [%.4g, %.4g], p=%.3g%s\n", i+1, c.Term, c.Estimate, c.Lower, c.Upper, c.PValue, mark)
			}
			return nil
		}

		runs, err := st.ListRuns(ctx, runsDataset)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("(no runs)")
			return nil
		}
		for _, r := range runs {
			fit := r.FitError
			if r.RSquared != nil {
				fit = fmt.Sprintf("R²=%.3f", *r.RSquared)
			} else if fit == "" {
				fit = "not fitted"
			}
			fmt.Printf("- %s: %s %s (%d/%d records, %d groups, %s)\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Dataset, r.Kept, r.Input, r.Groups, fit)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVar(&runsDB, "db", "", "SQLite database written with --sqlite")
	runsCmd.Flags().StringVarP(&runsProject, "project", "p", "", "project whose run history to read")
	runsCmd.Flags().StringVar(&runsDataset, "dataset", "", "only list runs of this dataset name")
	runsCmd.Flags().StringVar(&runsShow, "show", "", "show coefficients of one run id")
}
