package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"hostbackup/src/backup/configbundle"
	"hostbackup/src/restic"
)

func newMakeConfigBackupCmd(stdout, stderr io.Writer) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "make-config-backup",
		Short: "Bundle and encrypt the backup configuration for disaster recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()

			passphrase, err := configbundle.ResolvePassphrase(app.cfg.Passphrase, true)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = filepath.Dir(app.cfg.StagingDir)
			}
			encPath, err := configbundle.Create(app.cfg, app.log, outDir, passphrase, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "encrypted config bundle: %s\n", encPath)

			ctx := cmdContext(cmd)
			bin, detectErr := restic.Detect(ctx)
			return configbundle.Store(ctx, app.cfg, app.creds, bin, detectErr == nil, encPath, app.log)
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the encrypted bundle (default next to the staging directory)")
	return cmd
}

func newDecryptConfigBackupCmd(stdout, stderr io.Writer, stdin io.Reader) *cobra.Command {
	var restore bool
	cmd := &cobra.Command{
		Use:   "decrypt-config-backup FILE",
		Short: "Decrypt a config bundle, optionally restoring it in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			app, release, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer release()

			bundlePath := args[0]
			if _, err := os.Stat(bundlePath); err != nil {
				return fmt.Errorf("bundle %s: %w", bundlePath, err)
			}

			passphrase, err := configbundle.ResolvePassphrase(app.cfg.Passphrase, false)
			if err != nil {
				return err
			}

			root, names, err := configbundle.Unbundle(bundlePath, passphrase, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "extracted to %s:\n", root)
			for _, n := range names {
				fmt.Fprintf(stdout, "  %s\n", n)
			}

			if !restore {
				return nil
			}
			applied, err := configbundle.Apply(app.cfg, root, getSafetyOptions(cmd), stdin, stdout)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintln(stdout, "restore declined; extracted files left in place")
				return nil
			}
			app.log.Info("configuration restored from %s", bundlePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "After extraction, copy the configuration over the live locations")
	return cmd
}
