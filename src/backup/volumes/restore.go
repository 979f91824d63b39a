package volumes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hostbackup/src/dockercli"
)

// Restore extracts the archive at src into the named volume, creating the
// volume first when the runtime does not know it. No rollback is attempted
// on failure; an interrupted restore may leave a partially populated
// volume.
func Restore(ctx context.Context, client dockercli.Client, volume, src string) error {
	if err := CheckArchiveName(src); err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("archive %s: %w", src, err)
	}

	exists, err := client.VolumeExists(ctx, volume)
	if err != nil {
		return err
	}
	if !exists {
		if err := client.CreateVolume(ctx, volume); err != nil {
			return err
		}
	}

	if err := client.RestoreVolume(ctx, volume, filepath.Dir(src), filepath.Base(src)); err != nil {
		return fmt.Errorf("restore volume %s from %s: %w", volume, src, err)
	}
	return nil
}
