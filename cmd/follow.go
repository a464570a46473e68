package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/dmask/internal/config"
	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/follow"
	"github.com/bimmerbailey/dmask/internal/masking"
)

var followCmd = &cobra.Command{
	Use:   "follow [flags] <file>",
	Short: "Mask an NDJSON log file as it grows",
	Long: `Watch a newline-delimited JSON file like 'tail -f' and print every line
masked. Lines that are not valid JSON are replaced by a redaction notice
unless --pass-invalid is given.

Examples:
  dmask follow /var/log/app.ndjson
  dmask follow -n 50 --no-follow app.ndjson
  dmask follow --follow-rotate /var/log/app.ndjson`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	addFollowFlags(followCmd)
	rootCmd.AddCommand(followCmd)
}

func addFollowFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("lines", "n", 10, "number of initial lines to show")
	cmd.Flags().Bool("no-follow", false, "print last N lines and exit (don't follow)")
	cmd.Flags().Bool("follow-rotate", false, "follow through log rotations (continue when file is renamed/removed)")
	cmd.Flags().String("rotate-timeout", "10s", "how long to wait for a rotated file to reappear")
	cmd.Flags().Bool("pass-invalid", false, "print lines that cannot be masked unchanged")
	cmd.Flags().StringArray("rule", nil, "extra rule as masker=selector (repeatable)")
}

func runFollow(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	lines, _ := cmd.Flags().GetInt("lines")
	noFollow, _ := cmd.Flags().GetBool("no-follow")
	followRotate, _ := cmd.Flags().GetBool("follow-rotate")
	passInvalid, _ := cmd.Flags().GetBool("pass-invalid")
	rotateTimeoutStr, _ := cmd.Flags().GetString("rotate-timeout")

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	rotateTimeout, err := config.ParseDuration(rotateTimeoutStr)
	if err != nil {
		return fmt.Errorf("invalid --rotate-timeout: %w", err)
	}

	_, logger, setup, err := setupFromConfig(cmd)
	if err != nil {
		return err
	}
	pipeline, err := setup.pipeline()
	if err != nil {
		return err
	}
	var masker masking.DocumentMasker = masking.Passthrough{}
	if pipeline != nil {
		masker = pipeline.WithCodec(document.JSONCodec{})
	}

	out := cmd.OutOrStdout()
	follower := follow.New(follow.Options{
		FilePath:      filePath,
		Lines:         lines,
		Follow:        !noFollow,
		FollowRotate:  followRotate,
		RotateTimeout: rotateTimeout,
		PassInvalid:   passInvalid,
		Masker:        masker,
		Logger:        logger,
		Output: func(l follow.Line) error {
			_, err := fmt.Fprintf(out, "%s\n", l.Data)
			return err
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = follower.Run(ctx)
	if errors.Is(err, follow.ErrRotated) {
		logger.Info("stopped following", "reason", err)
		return nil
	}
	return err
}
