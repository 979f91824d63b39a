package volumes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hostbackup/src/config"
	"hostbackup/src/dockercli"
	"hostbackup/src/restic"
)

// Seam for tests that must not invoke a real restic binary.
var dumpFile = restic.Dump

// RestoreFromRepo streams a volume's staged archive out of a snapshot into
// a private temporary directory and restores it locally. snapshotID may be
// empty, meaning the newest snapshot. The temporary directory is removed
// unconditionally.
func RestoreFromRepo(ctx context.Context, bin restic.BinaryInfo, creds *config.Credentials, client dockercli.Client, cfg *config.Config, volume, snapshotID string) error {
	if snapshotID == "" {
		snapshotID = "latest"
	}
	repoPath := cfg.RepoArchivePath(volume)

	tmpDir, err := os.MkdirTemp("", "hostbackup-restore-")
	if err != nil {
		return fmt.Errorf("create temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dest := filepath.Join(tmpDir, config.ArchiveName(volume))
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	dumpErr := dumpFile(ctx, bin, creds, snapshotID, repoPath, f)
	closeErr := f.Close()
	if dumpErr != nil {
		return fmt.Errorf("fetch %s from snapshot %s: %w (was %s listed in the volumes list when that snapshot was taken?)",
			repoPath, snapshotID, dumpErr, volume)
	}
	if closeErr != nil {
		return fmt.Errorf("write %s: %w", dest, closeErr)
	}

	return Restore(ctx, client, volume, dest)
}
