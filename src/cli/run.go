package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	runpkg "hostbackup/src/backup/run"
	"hostbackup/src/dockercli"
	"hostbackup/src/restic"
)

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a full backup cycle: dump volumes, snapshot, check, prune",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()

			ctx := cmdContext(cmd)
			bin, err := restic.Detect(ctx)
			if err != nil {
				return err
			}
			docker, err := dockercli.Connect(stdout)
			if err != nil {
				return err
			}

			d := &runpkg.Driver{
				Cfg:      app.cfg,
				Creds:    app.creds,
				Docker:   docker,
				Bin:      bin,
				Log:      app.log,
				Progress: stdout,
				Now:      time.Now,
			}
			return d.Run(ctx)
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
