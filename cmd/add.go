package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	addProjectName string
	addDesc        string
	addDateCol     string
	addTimeCol     string
	addBoroughCol  string
	addSheetName   string
	addSheetIndex  int
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register an incident dataset with a project",
	Long: `Register an incident dataset (CSV, TSV or XLSX) with a project. The file is
loaded once to validate the column mapping; later runs can reference it with
"analyze -p <project> --dataset <name|id>".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		if addProjectName == "" {
			return fmt.Errorf("--project is required")
		}
		p, err := loadProjectByName(addProjectName)
		if err != nil {
			return err
		}
		opt := columnOptions(addDateCol, addTimeCol, addBoroughCol)
		opt.SheetName = addSheetName
		opt.SheetIndex = addSheetIndex
		d, err := p.AddDataset(file, addDesc, opt)
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Dataset added: %s (%d rows, id %s)\n", d.Name, d.Rows, d.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addProjectName, "project", "p", "", "project name")
	addCmd.Flags().StringVar(&addDesc, "desc", "", "dataset description")
	addCmd.Flags().StringVar(&addDateCol, "date-col", "", "date column header (default from config)")
	addCmd.Flags().StringVar(&addTimeCol, "time-col", "", "time column header (default from config)")
	addCmd.Flags().StringVar(&addBoroughCol, "borough-col", "", "borough column header (default from config)")
	addCmd.Flags().StringVar(&addSheetName, "sheet-name", "", "XLSX: sheet name to load")
	addCmd.Flags().IntVar(&addSheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
