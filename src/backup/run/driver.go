package run

import (
	"context"
	"io"
	"os"
	"time"

	"hostbackup/src/backup/volumes"
	"hostbackup/src/config"
	"hostbackup/src/dockercli"
	"hostbackup/src/listfile"
	"hostbackup/src/logging"
	"hostbackup/src/restic"
)

// Seams for tests that must not invoke a real restic binary.
var (
	ensureRepository = restic.EnsureRepository
	backupSources    = restic.Backup
	checkRepository  = restic.Check
	forgetPrune      = restic.ForgetPrune
)

// Driver executes the full backup cycle: validate credentials, dump
// volumes, ensure the repository, build sources, snapshot, check, prune.
// States run in strict sequence with no retries and no partial-completion
// resume; any failure aborts the run.
type Driver struct {
	Cfg      *config.Config
	Creds    *config.Credentials
	Docker   dockercli.Client
	Bin      restic.BinaryInfo
	Log      *logging.Logger
	Progress io.Writer
	Now      func() time.Time
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run performs one backup cycle.
func (d *Driver) Run(ctx context.Context) error {
	d.Log.Info("backup run starting")

	d.Log.Info("validating environment")
	if err := d.Creds.Validate(); err != nil {
		return err
	}
	d.Log.Info("environment validated")

	d.Log.Info("dumping volumes to staging")
	if err := d.dumpVolumes(ctx); err != nil {
		return err
	}
	d.Log.Info("volume dump finished")

	d.Log.Info("checking repository")
	if err := ensureRepository(ctx, d.Bin, d.Creds); err != nil {
		return err
	}
	d.Log.Info("repository ready")

	d.Log.Info("building backup sources")
	sources, err := BuildSources(d.Cfg, d.Log)
	if err != nil {
		return err
	}
	d.Log.Info("backing up %d sources", len(sources))

	excludeFile := ""
	if _, err := os.Stat(d.Cfg.ExcludesFile); err == nil {
		excludeFile = d.Cfg.ExcludesFile
	} else {
		d.Log.Debug("no excludes file at %s", d.Cfg.ExcludesFile)
	}

	tags := d.Cfg.Tags(d.now())
	if err := backupSources(ctx, d.Bin, d.Creds, sources, tags, excludeFile, d.Progress); err != nil {
		d.Log.Error("snapshot failed: %v", err)
		return err
	}
	d.Log.Info("snapshot complete")

	d.Log.Info("checking repository integrity")
	if err := checkRepository(ctx, d.Bin, d.Creds, d.Progress); err != nil {
		d.Log.Error("integrity check failed: %v", err)
		return err
	}
	d.Log.Info("integrity check passed")

	d.Log.Info("applying retention policy (daily=%d weekly=%d monthly=%d yearly=%d)",
		d.Cfg.Retention.Daily, d.Cfg.Retention.Weekly, d.Cfg.Retention.Monthly, d.Cfg.Retention.Yearly)
	if err := forgetPrune(ctx, d.Bin, d.Creds, d.Cfg.Retention, d.Progress); err != nil {
		d.Log.Error("prune failed: %v", err)
		return err
	}
	d.Log.Info("retention applied; backup run finished")
	return nil
}

// dumpVolumes archives every listed volume into staging, one at a time, in
// list order. A runtime failure aborts the whole run: a partial dataset
// must not silently become the backup.
func (d *Driver) dumpVolumes(ctx context.Context) error {
	vols, err := listfile.Read(d.Cfg.VolumesList)
	if err != nil {
		return err
	}
	for i, v := range vols {
		dest := d.Cfg.StagedArchivePath(v)
		d.Log.Info("[%d/%d] dumping volume %s", i+1, len(vols), v)
		if err := volumes.Archive(ctx, d.Docker, v, dest); err != nil {
			return err
		}
		d.Log.Info("[%d/%d] dumped volume %s", i+1, len(vols), v)
	}
	return nil
}
