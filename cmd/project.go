package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashlens/internal/analysis"
	"github.com/KaramelBytes/crashlens/internal/project"
)

var (
	pmProject string
	pmClear   bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage per-project settings",
}

var projectSetTopNCmd = &cobra.Command{
	Use:   "set-top-n <n>",
	Short: "Set or clear a project's number of ranked factors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateProjectConfig(args, "top N", func(pc *project.ProjectConfig, val string) (string, error) {
			if pmClear {
				pc.TopN = 0
				return "", nil
			}
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return "", fmt.Errorf("invalid top N: %q (want a positive integer)", val)
			}
			pc.TopN = n
			return strconv.Itoa(n), nil
		})
	},
}

var projectSetTermsCmd = &cobra.Command{
	Use:   "set-terms <terms>",
	Short: "Set or clear a project's model terms (comma-separated)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateProjectConfig(args, "model terms", func(pc *project.ProjectConfig, val string) (string, error) {
			if pmClear {
				pc.ModelTerms = nil
				return "", nil
			}
			terms, err := analysis.ParseTerms(strings.Split(val, ","))
			if err != nil {
				return "", err
			}
			names := make([]string, len(terms))
			for i, t := range terms {
				names[i] = string(t)
			}
			pc.ModelTerms = names
			return strings.Join(names, ", "), nil
		})
	},
}

var projectSetDenseCmd = &cobra.Command{
	Use:   "set-dense <true|false>",
	Short: "Set or clear whether a project fits on the dense key grid",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateProjectConfig(args, "dense grid", func(pc *project.ProjectConfig, val string) (string, error) {
			if pmClear {
				pc.DenseGrid = nil
				return "", nil
			}
			b, err := strconv.ParseBool(val)
			if err != nil {
				return "", fmt.Errorf("invalid bool for dense grid: %q", val)
			}
			pc.DenseGrid = &b
			return strconv.FormatBool(b), nil
		})
	},
}

// updateProjectConfig loads the --project, applies set and saves it.
func updateProjectConfig(args []string, what string, set func(pc *project.ProjectConfig, val string) (string, error)) error {
	if pmProject == "" {
		return fmt.Errorf("--project is required")
	}
	p, err := loadProjectByName(pmProject)
	if err != nil {
		return err
	}
	if p.Config == nil {
		p.Config = &project.ProjectConfig{}
	}
	val := ""
	if len(args) > 0 {
		val = strings.TrimSpace(args[0])
	}
	if !pmClear && val == "" {
		return fmt.Errorf("%s is required unless --clear is set", what)
	}
	shown, err := set(p.Config, val)
	if err != nil {
		return err
	}
	if err := p.Save(); err != nil {
		return err
	}
	if pmClear {
		fmt.Printf("✓ Cleared project %s for %s\n", what, pmProject)
	} else {
		fmt.Printf("✓ Set project %s for %s: %s\n", what, pmProject, shown)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(projectCmd)
	for _, c := range []*cobra.Command{projectSetTopNCmd, projectSetTermsCmd, projectSetDenseCmd} {
		projectCmd.AddCommand(c)
		c.Flags().StringVarP(&pmProject, "project", "p", "", "project name")
		c.Flags().BoolVar(&pmClear, "clear", false, "clear the project's override")
	}
}
