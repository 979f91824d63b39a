package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"hostbackup/src/config"
	"hostbackup/src/lockfile"
	"hostbackup/src/logging"
)

// NewRootCmd returns the root cobra command for the hostbackup CLI.
func NewRootCmd(stdout, stderr io.Writer, stdin io.Reader) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hostbackup",
		Short:         "Back up host files and docker volumes with restic, plus encrypted config bundles",
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(stdin)

	addGlobalFlags(cmd)

	cmd.AddCommand(newRunCmd(stdout, stderr))
	cmd.AddCommand(newDryRunCmd(stdout, stderr))
	cmd.AddCommand(newCleanCmd(stdout, stderr))
	cmd.AddCommand(newRestoreVolumeCmd(stdout, stderr))
	cmd.AddCommand(newRestoreVolumeFromRepoCmd(stdout, stderr))
	cmd.AddCommand(newMakeConfigBackupCmd(stdout, stderr))
	cmd.AddCommand(newDecryptConfigBackupCmd(stdout, stderr, stdin))
	cmd.AddCommand(newSnapshotsCmd(stdout, stderr))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio and maps errors to exit
// codes. A failed backup-engine invocation keeps the engine's own exit
// code.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr, os.Stdin)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if code := exitErr.ExitCode(); code > 0 {
				return code
			}
		}
		return 1
	}
	return 0
}

// app bundles everything a dispatched command needs: resolved config,
// credentials, a logger, and the held single-instance lock.
type app struct {
	cfg   *config.Config
	creds *config.Credentials
	log   *logging.Logger
}

var acquireLock = lockfile.Acquire

// setup loads configuration, opens the log, and takes the single-instance
// lock. Callers must defer the returned release func. Lock contention is
// fatal and leaves nothing behind but the log line.
func setup(cmd *cobra.Command, stderr io.Writer) (*app, func(), error) {
	configDir, stagingDir, logFile, lockFile, verbose := getGlobalFlags(cmd)

	cfg, creds, err := config.Load(configDir, stagingDir, logFile, lockFile)
	if err != nil {
		return nil, nil, err
	}

	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	log := logging.New(level, stderr)
	if err := log.OpenLogFile(cfg.LogFile); err != nil {
		log.Warning("continuing without log file: %v", err)
	}

	lock, err := acquireLock(cfg.LockFile)
	if err != nil {
		log.Error("%v", err)
		log.CloseLogFile()
		return nil, nil, err
	}

	release := func() {
		lock.Release()
		log.CloseLogFile()
	}
	return &app{cfg: cfg, creds: creds, log: log}, release, nil
}
