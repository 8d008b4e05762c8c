package main

import (
	"fmt"

	"github.com/aluiziolira/bookcrawl/validate"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a data directory against expected product counts",
		Long: `Validate checks, for each category of the specs file, that its CSV file
exists with the expected header and product count, and that every product has
an image.

The specs file is a CSV with the columns category and product_count.`,
		Args: cobra.NoArgs,
		RunE: runValidateCmd,
	}

	cmd.Flags().StringP("data-dir", "d", "", "Data directory to check (default is the configured output directory)")
	cmd.Flags().StringP("specs", "s", "", "CSV file listing categories and expected product counts")
	cmd.Flags().StringSlice("category", nil, "Only check these categories")
	_ = cmd.MarkFlagRequired("specs")

	return cmd
}

func runValidateCmd(cmd *cobra.Command, _ []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dataDir = cfg.OutputDir
	}
	specsPath, _ := cmd.Flags().GetString("specs")
	categories, _ := cmd.Flags().GetStringSlice("category")

	specs, err := validate.LoadSpecs(specsPath)
	if err != nil {
		return err
	}
	specs, err = validate.Select(specs, categories)
	if err != nil {
		return err
	}
	v, err := validate.New(dataDir)
	if err != nil {
		return err
	}

	report := v.Validate(specs)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Validated:")
	fmt.Fprintf(out, "  %d/%d categories\n", report.Categories, report.ExpectedCategories)
	fmt.Fprintf(out, "  %d/%d products\n", report.Products, report.ExpectedProducts)
	fmt.Fprintf(out, "  %d/%d images\n", report.Images, report.ExpectedProducts)
	for _, e := range report.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}

	if !report.OK() {
		return fmt.Errorf("validation failed: %d errors in %s", len(report.Errors), dataDir)
	}
	fmt.Fprintln(out, "Data is valid")
	return nil
}
