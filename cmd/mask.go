package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/dmask/internal/config"
	"github.com/bimmerbailey/dmask/internal/output"
)

var maskCmd = &cobra.Command{
	Use:   "mask [flags] [file...]",
	Short: "Mask documents and print the result",
	Long: `Mask JSON, YAML or NDJSON documents with the configured rules and write
the masked documents to stdout. With no file, or "-", stdin is read.

The format of each file is detected from its extension unless --input-format
or masking.input_format says otherwise. NDJSON is masked line by line. A file
that cannot be parsed is reported as an error and nothing is written for it.

Examples:
  dmask mask payload.json
  dmask mask --in-place config/*.yaml
  cat event.json | dmask mask --rule secret='$..token' --rule remove='$..debug'
  dmask mask --report app.ndjson > masked.ndjson`,
	RunE: runMask,
}

func init() {
	addMaskFlags(maskCmd)
	rootCmd.AddCommand(maskCmd)
}

func addMaskFlags(cmd *cobra.Command) {
	addMaskingFlags(cmd)
	cmd.Flags().BoolP("in-place", "i", false, "overwrite each file with its masked version")
	cmd.Flags().Bool("report", false, "print a masking report to stderr")
}

func runMask(cmd *cobra.Command, args []string) error {
	inPlace, _ := cmd.Flags().GetBool("in-place")
	showReport, _ := cmd.Flags().GetBool("report")

	_, logger, setup, err := setupFromConfig(cmd)
	if err != nil {
		return err
	}
	pipeline, err := setup.pipeline()
	if err != nil {
		return err
	}
	if pipeline == nil {
		logger.Warn("masking is disabled, documents are copied unchanged")
	}

	files, err := inputFiles(args)
	if err != nil {
		return err
	}

	var reports []output.SourceReport
	writer := output.New(cmd.OutOrStdout(), output.FormatText)

	for _, file := range files {
		if inPlace && file == config.Stdin {
			return fmt.Errorf("--in-place cannot be used with stdin")
		}

		format, err := setup.formatFor(cmd, file)
		if err != nil {
			return err
		}
		data, err := readInput(cmd, file)
		if err != nil {
			return err
		}

		masked, report, err := setup.mask(pipeline, format, data)
		if err != nil {
			return fmt.Errorf("error masking %s: %w", file, err)
		}
		logger.Debug("masked file", "file", file, "format", format, "replaced", report.Replaced, "removed", report.Removed)
		reports = append(reports, output.SourceReport{Source: file, Report: report})

		if inPlace {
			if err := writeInPlace(file, masked); err != nil {
				return err
			}
			continue
		}
		if err := writer.WriteDocument(masked); err != nil {
			return err
		}
	}

	if showReport {
		return output.New(cmd.ErrOrStderr(), output.ParseFormat(viper.GetString("format"))).
			WithColor(output.ColorAuto).
			WriteReports(reports)
	}
	return nil
}

// writeInPlace replaces path with data, keeping its permissions.
func writeInPlace(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	tmp := path + ".dmask.tmp"
	if err := os.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
