package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/dmask/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <file...>",
	Short: "Show what masking would change",
	Long: `Run the masking pipeline over documents without printing them and show,
per rule, how many values were matched, replaced, removed or skipped because
their type did not fit the masker.

Examples:
  dmask stats payload.json
  dmask stats --format json logs/*.ndjson
  dmask stats --format table --rule email='$..contact' users.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func init() {
	addMaskingFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	_, _, setup, err := setupFromConfig(cmd)
	if err != nil {
		return err
	}
	pipeline, err := setup.pipeline()
	if err != nil {
		return err
	}
	if pipeline == nil {
		return fmt.Errorf("masking is disabled (masking.enabled is false)")
	}

	files, err := inputFiles(args)
	if err != nil {
		return err
	}

	reports := make([]output.SourceReport, 0, len(files))
	for _, file := range files {
		format, err := setup.formatFor(cmd, file)
		if err != nil {
			return err
		}
		data, err := readInput(cmd, file)
		if err != nil {
			return err
		}
		_, report, err := setup.mask(pipeline, format, data)
		if err != nil {
			return fmt.Errorf("error masking %s: %w", file, err)
		}
		reports = append(reports, output.SourceReport{Source: file, Report: report})
	}

	return output.New(cmd.OutOrStdout(), output.ParseFormat(viper.GetString("format"))).
		WithColor(output.ColorAuto).
		WriteReports(reports)
}
