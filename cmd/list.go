package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	listProjects bool
	listDatasets bool
	listRuns     bool
	listProjName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, datasets or runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 0
		for _, b := range []bool{listProjects, listDatasets, listRuns} {
			if b {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("specify exactly one of --projects, --datasets or --runs")
		}
		if listProjects {
			return listAllProjects()
		}
		if listProjName == "" {
			return fmt.Errorf("--project is required when using --datasets or --runs")
		}
		p, err := loadProjectByName(listProjName)
		if err != nil {
			return err
		}
		if listDatasets {
			ds := p.SortedDatasets()
			if len(ds) == 0 {
				fmt.Println("(no datasets)")
				return nil
			}
			for _, d := range ds {
				desc := ""
				if d.Description != "" {
					desc = " - " + d.Description
				}
				fmt.Printf("- %s: %s (%d rows)%s\n", d.ID, d.Name, d.Rows, desc)
			}
			return nil
		}
		if len(p.Runs) == 0 {
			fmt.Println("(no runs)")
			return nil
		}
		for _, r := range p.Runs {
			fit := "not fitted"
			if r.RSquared != nil {
				fit = fmt.Sprintf("R²=%.3f, %d significant", *r.RSquared, r.Significant)
			}
			fmt.Printf("- %s: %s %s (%d groups, %s)\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Dataset, r.Groups, fit)
		}
		return nil
	},
}

func listAllProjects() error {
	root, err := defaultProjectsDir()
	if err != nil {
		return err
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	found := false
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		pj := filepath.Join(root, e.Name(), "project.json")
		if _, err := os.Stat(pj); err == nil {
			fmt.Printf("- %s\n", e.Name())
			found = true
		}
	}
	if !found {
		fmt.Println("(no projects)")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listProjects, "projects", false, "list projects")
	listCmd.Flags().BoolVar(&listDatasets, "datasets", false, "list datasets registered with a project")
	listCmd.Flags().BoolVar(&listRuns, "runs", false, "list analysis runs recorded in a project")
	listCmd.Flags().StringVarP(&listProjName, "project", "p", "", "project name for --datasets or --runs")
}
