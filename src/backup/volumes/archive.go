package volumes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hostbackup/src/dockercli"
)

// CheckArchiveName rejects archive paths whose base filename is empty or
// degenerate before any container is launched, so a malformed path can
// never turn into a confused bind mount.
func CheckArchiveName(path string) error {
	switch base := filepath.Base(path); base {
	case "", ".", "/", "..":
		return fmt.Errorf("invalid archive path %q: base filename must be a regular name", path)
	}
	return nil
}

// Archive exports a named volume into a compressed archive at dest by
// running a throwaway container that mounts the volume read-only. The
// destination's parent directory is created if needed. The archive is a
// point-in-time view of the volume's filesystem; coordination with
// applications writing into the volume is the operator's concern.
func Archive(ctx context.Context, client dockercli.Client, volume, dest string) error {
	if err := CheckArchiveName(dest); err != nil {
		return err
	}
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create staging directory %s: %w", parent, err)
	}
	if err := client.ArchiveVolume(ctx, volume, parent, filepath.Base(dest)); err != nil {
		return fmt.Errorf("archive volume %s to %s: %w", volume, dest, err)
	}
	return nil
}
