package configbundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"hostbackup/src/config"
	"hostbackup/src/safety"
)

// Unbundle decrypts the bundle at bundlePath into a fresh timestamped
// temporary directory and extracts the archive there. It returns the
// extraction root and the extracted entry names. The extraction is left in
// place for the operator regardless of whether a restore follows.
func Unbundle(bundlePath, passphrase string, now time.Time) (string, []string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return "", nil, fmt.Errorf("open bundle %s: %w", bundlePath, err)
	}
	defer f.Close()

	plain, err := Decrypt(f, passphrase)
	if err != nil {
		return "", nil, err
	}

	destDir, err := os.MkdirTemp("", "hostbackup-config-"+now.UTC().Format("20060102T150405Z")+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create extraction directory: %w", err)
	}

	names, err := extractTarGz(plain, destDir)
	if err != nil {
		os.RemoveAll(destDir)
		return "", nil, err
	}
	return destDir, names, nil
}

func extractTarGz(r io.Reader, destDir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress bundle: %w", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		clean := path.Clean(hdr.Name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, fmt.Errorf("archive entry %q escapes the extraction directory", hdr.Name)
		}
		target := filepath.Join(destDir, filepath.FromSlash(clean))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return nil, fmt.Errorf("create %s: %w", target, err)
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return nil, fmt.Errorf("extract %s: %w", hdr.Name, copyErr)
			}
			if closeErr != nil {
				return nil, fmt.Errorf("extract %s: %w", hdr.Name, closeErr)
			}
			names = append(names, clean)
		default:
			// Bundles carry regular files only.
		}
	}
	return names, nil
}

// Apply copies the extracted configuration tree over the live locations:
// the configuration directory's files, the script location, and the cron
// definition. It asks for confirmation first; declining performs no system
// mutation and reports false. Expected permissions are reasserted after
// the copy.
func Apply(cfg *config.Config, root string, opts safety.Options, in io.Reader, out io.Writer) (bool, error) {
	question := fmt.Sprintf("Overwrite live configuration under %s, %s and %s", cfg.ConfigDir, cfg.SelfPath, cfg.CronFile)
	ok, err := safety.Confirm(opts, in, out, question)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	for _, live := range cfg.BundlePaths() {
		if live == "" {
			continue
		}
		extracted := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(filepath.ToSlash(live), "/")))
		if _, err := os.Stat(extracted); err != nil {
			continue
		}
		if err := copyFile(extracted, live); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "restored %s\n", live)
	}

	// Credentials stay owner-only; the script must be executable.
	if _, err := os.Stat(cfg.EnvFile); err == nil {
		if err := os.Chmod(cfg.EnvFile, 0o600); err != nil {
			return true, fmt.Errorf("restrict %s: %w", cfg.EnvFile, err)
		}
	}
	if cfg.SelfPath != "" {
		if _, err := os.Stat(cfg.SelfPath); err == nil {
			if err := os.Chmod(cfg.SelfPath, 0o755); err != nil {
				return true, fmt.Errorf("mark %s executable: %w", cfg.SelfPath, err)
			}
		}
	}
	return true, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode()&0o777)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, closeErr)
	}
	return nil
}
