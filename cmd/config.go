package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashlens/internal/analysis"
	cfgpkg "github.com/KaramelBytes/crashlens/internal/config"
	"github.com/KaramelBytes/crashlens/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set crashlens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded (showing defaults)")
		}
		c := effectiveConfig()
		fmt.Printf("projects_dir: %s\n", c.ProjectsDir)
		fmt.Printf("date_column: %s\n", c.DateColumn)
		fmt.Printf("time_column: %s\n", c.TimeColumn)
		fmt.Printf("borough_column: %s\n", c.BoroughColumn)
		fmt.Printf("max_rows: %d\n", c.MaxRows)
		fmt.Printf("top_n: %d\n", c.TopN)
		fmt.Printf("confidence_level: %.3f\n", c.ConfidenceLevel)
		fmt.Printf("significance_level: %.3f\n", c.SignificanceLevel)
		fmt.Printf("dense_grid: %t\n", c.DenseGrid)
		if len(c.ModelTerms) > 0 {
			fmt.Printf("model_terms: %s\n", strings.Join(c.ModelTerms, ", "))
		}
		fmt.Printf("log_level: %s\n", c.LogLevel)
		fmt.Printf("log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "projects_dir":
		c.ProjectsDir = val
	case "date_column":
		c.DateColumn = val
	case "time_column":
		c.TimeColumn = val
	case "borough_column":
		c.BoroughColumn = val
	case "max_rows":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for max_rows: %v", val)
		}
		c.MaxRows = i
	case "top_n":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for top_n: %v", val)
		}
		c.TopN = i
	case "confidence_level":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for confidence_level: %w", err)
		}
		c.ConfidenceLevel = f
	case "significance_level":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for significance_level: %w", err)
		}
		c.SignificanceLevel = f
	case "dense_grid":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for dense_grid: %v", val)
		}
		c.DenseGrid = b
	case "model_terms":
		if strings.TrimSpace(val) == "" {
			c.ModelTerms = nil
			return nil
		}
		terms, err := analysis.ParseTerms(strings.Split(val, ","))
		if err != nil {
			return err
		}
		c.ModelTerms = make([]string, len(terms))
		for i, t := range terms {
			c.ModelTerms[i] = string(t)
		}
	case "log_level":
		if !logging.ValidLevel(val) {
			return fmt.Errorf("invalid log_level: %s (use trace|debug|info|warn|error|disabled)", val)
		}
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
