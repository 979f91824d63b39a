package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	runpkg "hostbackup/src/backup/run"
)

func newDryRunCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what a backup run would do without touching remote state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()
			return runpkg.Preview(app.cfg, stdout, time.Now())
		},
	}
}

func newCleanCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete staged volume archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()
			return runpkg.Clean(app.cfg, stdout)
		},
	}
}
