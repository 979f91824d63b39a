package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hostbackup/src/restic"
)

func newSnapshotsCmd(stdout, stderr io.Writer) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List snapshots in the backup repository",
		Args:  cobra.NoArgs,
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

			snaps, err := restic.ListSnapshots(ctx, bin, app.creds, tags)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tTAGS")
			for _, s := range snaps {
				id := s.ShortID
				if id == "" {
					id = s.ID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, s.Time.Format("2006-01-02 15:04:05"), strings.Join(s.Tags, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Only list snapshots with this tag (repeatable)")
	return cmd
}
