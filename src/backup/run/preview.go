package run

import (
	"fmt"
	"io"
	"os"
	"time"

	"hostbackup/src/config"
	"hostbackup/src/listfile"
)

// Preview renders what a backup run would do without mutating anything:
// no staging writes, no repository access, no configuration changes.
func Preview(cfg *config.Config, w io.Writer, now time.Time) error {
	vols, err := listfile.Read(cfg.VolumesList)
	if err != nil {
		return err
	}
	files, err := listfile.Read(cfg.FilesList)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "volumes to dump (%d):\n", len(vols))
	for _, v := range vols {
		fmt.Fprintf(w, "  %s -> %s\n", v, cfg.StagedArchivePath(v))
	}

	fmt.Fprintf(w, "files to back up (%d):\n", len(files))
	for _, f := range files {
		marker := ""
		if _, err := os.Stat(f); err != nil {
			marker = " (missing, would be skipped)"
		}
		fmt.Fprintf(w, "  %s%s\n", f, marker)
	}

	staged, err := StagedArchives(cfg.StagingDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "staged archives already present (%d):\n", len(staged))
	for _, s := range staged {
		fmt.Fprintf(w, "  %s\n", s)
	}

	if _, err := os.Stat(cfg.ExcludesFile); err == nil {
		fmt.Fprintf(w, "excludes file: %s\n", cfg.ExcludesFile)
	} else {
		fmt.Fprintf(w, "excludes file: none\n")
	}

	fmt.Fprintf(w, "retention: daily=%d weekly=%d monthly=%d yearly=%d\n",
		cfg.Retention.Daily, cfg.Retention.Weekly, cfg.Retention.Monthly, cfg.Retention.Yearly)
	fmt.Fprintf(w, "snapshot tags: %v\n", cfg.Tags(now))
	return nil
}

// Clean deletes the staged volume archives. Missing staging content is not
// an error.
func Clean(cfg *config.Config, w io.Writer) error {
	staged, err := StagedArchives(cfg.StagingDir)
	if err != nil {
		return err
	}
	for _, s := range staged {
		if err := os.Remove(s); err != nil {
			return fmt.Errorf("remove staged archive %s: %w", s, err)
		}
		fmt.Fprintf(w, "removed %s\n", s)
	}
	if len(staged) == 0 {
		fmt.Fprintln(w, "staging is already clean")
	}
	return nil
}
