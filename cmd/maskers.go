package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/dmask/internal/output"
)

var maskersCmd = &cobra.Command{
	Use:   "maskers",
	Short: "List registered maskers and their selectors",
	Long: `List the built-in and configured maskers in registration order with
their order, the value type they accept, and the selectors the rules apply
them to.

Examples:
  dmask maskers
  dmask maskers --format json`,
	Args: cobra.NoArgs,
	RunE: runMaskers,
}

func init() {
	maskersCmd.Flags().StringArray("rule", nil, "extra rule as masker=selector (repeatable)")
	rootCmd.AddCommand(maskersCmd)
}

func runMaskers(cmd *cobra.Command, args []string) error {
	_, _, setup, err := setupFromConfig(cmd)
	if err != nil {
		return err
	}
	return output.New(cmd.OutOrStdout(), output.ParseFormat(viper.GetString("format"))).
		WriteMaskers(setup.maskers())
}
