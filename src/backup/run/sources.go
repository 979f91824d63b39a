package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"hostbackup/src/config"
	"hostbackup/src/listfile"
	"hostbackup/src/logging"
)

// StagedArchives returns the staged volume archives under the staging
// directory, sorted by name. A missing staging directory yields an empty
// slice.
func StagedArchives(stagingDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(stagingDir, "*.tar.gz"))
	if err != nil {
		return nil, fmt.Errorf("scan staging directory %s: %w", stagingDir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// BuildSources merges the validated file-list entries and the staging
// directory (when it holds archives) into the ordered argument list for the
// backup engine. Missing file entries are warned about and skipped;
// environments drift. An empty result is fatal: a backup of nothing must
// never silently succeed.
func BuildSources(cfg *config.Config, log *logging.Logger) ([]string, error) {
	files, err := listfile.Read(cfg.FilesList)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			log.Warning("skipping backup path %s: %v", f, err)
			continue
		}
		sources = append(sources, f)
	}

	staged, err := StagedArchives(cfg.StagingDir)
	if err != nil {
		return nil, err
	}
	if len(staged) > 0 {
		// One directory entry; the engine recurses into it itself.
		sources = append(sources, cfg.StagingDir)
	}

	if len(sources) == 0 {
		return nil, errors.New("backup source set is empty: no readable file-list entries and no staged volume archives")
	}
	return sources, nil
}
