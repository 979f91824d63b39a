package cli

import (
	"io"

	"github.com/spf13/cobra"

	"hostbackup/src/backup/volumes"
	"hostbackup/src/dockercli"
	"hostbackup/src/restic"
)

func newRestoreVolumeCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "restore-volume VOLUME ARCHIVE",
		Short: "Restore a volume from a local archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()

			docker, err := dockercli.Connect(stdout)
			if err != nil {
				return err
			}
			volume, archive := args[0], args[1]
			app.log.Info("restoring volume %s from %s", volume, archive)
			if err := volumes.Restore(cmdContext(cmd), docker, volume, archive); err != nil {
				return err
			}
			app.log.Info("restored volume %s", volume)
			return nil
		},
	}
}

func newRestoreVolumeFromRepoCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "restore-volume-from-repo VOLUME [SNAPSHOT]",
		Short: "Restore a volume from a staged archive inside the backup repository",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()

			if err := app.creds.Validate(); err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			bin, err := restic.Detect(ctx)
			if err != nil {
				return err
			}
			docker, err := dockercli.Connect(stdout)
			if err != nil {
				return err
			}

			volume := args[0]
			snapshotID := "latest"
			if len(args) == 2 {
				snapshotID = args[1]
			}
			app.log.Info("restoring volume %s from repository snapshot %s", volume, snapshotID)
			if err := volumes.RestoreFromRepo(ctx, bin, app.creds, docker, app.cfg, volume, snapshotID); err != nil {
				return err
			}
			app.log.Info("restored volume %s from repository", volume)
			return nil
		},
	}
}
