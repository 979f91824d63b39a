package restic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// BinaryInfo describes a detected restic CLI binary.
type BinaryInfo struct {
	Path    string
	Version string
}

var versionRegexp = regexp.MustCompile(`restic\s+([0-9]+\.[0-9]+\.[0-9]+(?:-[A-Za-z0-9.]+)?)`)

// Detect locates the restic binary on PATH and queries its version. The
// context bounds the version subprocess.
func Detect(ctx context.Context) (BinaryInfo, error) {
	exe, err := exec.LookPath("restic")
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("restic binary not found on PATH: %w", err)
	}
	ver, err := queryVersion(ctx, exe)
	if err != nil {
		return BinaryInfo{}, err
	}
	return BinaryInfo{Path: exe, Version: ver}, nil
}

func queryVersion(ctx context.Context, exe string) (string, error) {
	// Guard against a hanging binary with a short timeout.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, exe, "version")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("restic: version command failed: %w", err)
	}
	version, err := parseVersion(strings.NewReader(string(out)))
	if err != nil {
		return "", err
	}
	if version == "" {
		return "", errors.New("restic: could not parse version output")
	}
	return version, nil
}

func parseVersion(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if m := versionRegexp.FindStringSubmatch(scanner.Text()); len(m) == 2 {
			return m[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("restic: read version output: %w", err)
	}
	return "", nil
}

// ExtractVersion derives the restic version string from command output.
// Exposed for testing.
func ExtractVersion(output string) (string, error) {
	return parseVersion(strings.NewReader(output))
}
