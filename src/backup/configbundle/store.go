package configbundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hostbackup/src/config"
	"hostbackup/src/logging"
	"hostbackup/src/restic"
	"hostbackup/src/upload"
)

// Seams for tests.
var (
	detectCLI   = upload.DetectCLI
	uploadFile  = upload.Upload
	storeInRepo = restic.BackupStream
)

// Store copies the encrypted bundle off the host, by priority: the
// configured object-storage URL when its CLI is available, else the backup
// repository when the engine is available, else it stays local and the
// operator is told to move it.
func Store(ctx context.Context, cfg *config.Config, creds *config.Credentials, bin restic.BinaryInfo, haveEngine bool, encPath string, log *logging.Logger) error {
	if cfg.UploadURL != "" {
		dest, err := upload.ParseDestination(cfg.UploadURL)
		if err != nil {
			return err
		}
		cli, err := detectCLI()
		if err == nil {
			log.Info("uploading bundle to %s", dest)
			if err := uploadFile(ctx, cli, creds.AccountID, creds.AccountKey, dest, encPath, nil); err != nil {
				return err
			}
			log.Info("bundle uploaded to %s", dest)
			return nil
		}
		log.Warning("upload URL configured but no CLI available: %v", err)
	}

	if creds.Repository != "" && haveEngine {
		f, err := os.Open(encPath)
		if err != nil {
			return fmt.Errorf("open bundle %s: %w", encPath, err)
		}
		defer f.Close()
		name := "/" + filepath.Base(encPath)
		tags := []string{"type=configbundle", "host=" + cfg.Hostname}
		log.Info("storing bundle in backup repository as %s", name)
		if err := storeInRepo(ctx, bin, creds, name, tags, f, nil); err != nil {
			return err
		}
		log.Info("bundle stored in backup repository")
		return nil
	}

	log.Warning("no upload destination configured; copy %s off this host manually", encPath)
	return nil
}
