package configbundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hostbackup/src/config"
	"hostbackup/src/logging"
)

// BundleName returns the timestamped filename of an encrypted config
// bundle.
func BundleName(host string, now time.Time) string {
	return fmt.Sprintf("hostbackup-config-%s-%s.tar.gz.age", host, now.UTC().Format("20060102T150405Z"))
}

// Create collects the configuration paths into a compressed tar, encrypts
// it with the passphrase, and removes the plaintext intermediate. Absent
// paths are simply omitted from the archive. It returns the path of the
// encrypted bundle inside outDir.
func Create(cfg *config.Config, log *logging.Logger, outDir, passphrase string, now time.Time) (string, error) {
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", fmt.Errorf("create bundle directory %s: %w", outDir, err)
	}

	encPath := filepath.Join(outDir, BundleName(cfg.Hostname, now))
	tarPath := strings.TrimSuffix(encPath, ".age")

	var included []string
	for _, p := range cfg.BundlePaths() {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			log.Debug("bundle: omitting absent path %s", p)
			continue
		}
		included = append(included, p)
	}
	if len(included) == 0 {
		return "", fmt.Errorf("no configuration paths exist under %s: nothing to bundle", cfg.ConfigDir)
	}

	if err := writeTarGz(tarPath, included); err != nil {
		return "", err
	}

	tarFile, err := os.Open(tarPath)
	if err != nil {
		return "", fmt.Errorf("reopen archive %s: %w", tarPath, err)
	}
	encFile, err := os.OpenFile(encPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		tarFile.Close()
		return "", fmt.Errorf("create %s: %w", encPath, err)
	}
	encErr := Encrypt(encFile, tarFile, passphrase)
	tarFile.Close()
	if closeErr := encFile.Close(); encErr == nil {
		encErr = closeErr
	}

	// The plaintext tar goes away regardless of how encryption ended.
	if err := secureDelete(tarPath); err != nil {
		log.Warning("could not remove plaintext archive %s: %v", tarPath, err)
	}
	if encErr != nil {
		os.Remove(encPath)
		return "", encErr
	}

	log.Info("config bundle written to %s (%d paths)", encPath, len(included))
	return encPath, nil
}

// writeTarGz archives the given absolute paths, storing each under its
// slash-trimmed absolute name so a restore can map entries back to live
// locations.
func writeTarGz(dest string, paths []string) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", dest, err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	var failure error
	for _, p := range paths {
		if failure = addFile(tw, p); failure != nil {
			break
		}
	}

	if err := tw.Close(); failure == nil {
		failure = err
	}
	if err := gz.Close(); failure == nil {
		failure = err
	}
	if err := out.Close(); failure == nil {
		failure = err
	}
	if failure != nil {
		os.Remove(dest)
		return failure
	}
	return nil
}

func addFile(tw *tar.Writer, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return fmt.Errorf("header for %s: %w", path, err)
	}
	hdr.Name = strings.TrimPrefix(filepath.ToSlash(path), "/")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}
