package restic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"hostbackup/src/config"
)

// EnsureRepository probes the repository with a snapshot listing and runs
// `restic init` when the probe reports an uninitialized repository. Any
// other probe failure is ignored: the probe is a best-effort existence
// check, and a genuinely broken repository will fail the backup itself.
func EnsureRepository(ctx context.Context, bin BinaryInfo, creds *config.Credentials) error {
	_, stderr, err := runCommand(ctx, bin, creds, []string{"snapshots", "--json", "--latest", "1"}, nil)
	if err == nil {
		return nil
	}
	if !isNotRepository(stderr) && !isNotRepository(err.Error()) {
		return nil
	}
	if _, initStderr, initErr := runCommand(ctx, bin, creds, []string{"init"}, nil); initErr != nil {
		return fmt.Errorf("restic: init repository: %w: %s", initErr, strings.TrimSpace(initStderr))
	}
	return nil
}

// Backup snapshots the given sources with the tag set. Sources are passed
// as a structured argument list, never shell-interpolated. excludeFile may
// be empty. Mount points are not crossed.
func Backup(ctx context.Context, bin BinaryInfo, creds *config.Credentials, sources, tags []string, excludeFile string, progress io.Writer) error {
	args := []string{"backup", "--one-file-system"}
	if excludeFile != "" {
		args = append(args, "--exclude-file", excludeFile)
	}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	args = append(args, sources...)

	cmd := exec.CommandContext(ctx, bin.Path, args...)
	cmd.Env = creds.Environ()
	if progress != nil {
		cmd.Stdout = progress
		cmd.Stderr = progress
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("restic: backup failed: %w", err)
	}
	return nil
}

// Check runs the repository consistency check, reusing the local cache.
func Check(ctx context.Context, bin BinaryInfo, creds *config.Credentials, progress io.Writer) error {
	cmd := exec.CommandContext(ctx, bin.Path, "check", "--with-cache")
	cmd.Env = creds.Environ()
	if progress != nil {
		cmd.Stdout = progress
		cmd.Stderr = progress
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("restic: check failed: %w", err)
	}
	return nil
}

// ForgetPrune applies the four-tier retention policy with combined
// forget+prune semantics, removing expired snapshots and reclaiming their
// unique data in one pass.
func ForgetPrune(ctx context.Context, bin BinaryInfo, creds *config.Credentials, policy config.RetentionPolicy, progress io.Writer) error {
	args := []string{"forget", "--prune",
		"--keep-daily", strconv.Itoa(policy.Daily),
		"--keep-weekly", strconv.Itoa(policy.Weekly),
		"--keep-monthly", strconv.Itoa(policy.Monthly),
		"--keep-yearly", strconv.Itoa(policy.Yearly),
	}
	cmd := exec.CommandContext(ctx, bin.Path, args...)
	cmd.Env = creds.Environ()
	if progress != nil {
		cmd.Stdout = progress
		cmd.Stderr = progress
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("restic: forget/prune failed: %w", err)
	}
	return nil
}

// Dump streams a single file out of a snapshot to w via `restic dump`.
// snapshotID may be "latest".
func Dump(ctx context.Context, bin BinaryInfo, creds *config.Credentials, snapshotID, path string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, bin.Path, "dump", snapshotID, path)
	cmd.Env = creds.Environ()
	cmd.Stdout = w
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("restic: dump %s from snapshot %s: %w: %s", path, snapshotID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// BackupStream runs `restic backup --stdin` with the provided reader,
// storing its contents under filename with the given tags. Used to push
// encrypted config bundles into the repository.
func BackupStream(ctx context.Context, bin BinaryInfo, creds *config.Credentials, filename string, tags []string, r io.Reader, progress io.Writer) error {
	args := []string{"backup", "--stdin", "--stdin-filename", filename}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	cmd := exec.CommandContext(ctx, bin.Path, args...)
	cmd.Env = creds.Environ()
	if progress != nil {
		cmd.Stdout = progress
		cmd.Stderr = progress
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("restic: acquire stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("restic: start stdin backup: %w", err)
	}
	copyErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(stdin, r)
		stdin.Close()
		copyErr <- err
	}()
	waitErr := cmd.Wait()
	if streamErr := <-copyErr; streamErr != nil {
		return fmt.Errorf("restic: stream backup data: %w", streamErr)
	}
	if waitErr != nil {
		return fmt.Errorf("restic: stdin backup failed: %w", waitErr)
	}
	return nil
}

// Snapshot represents a restic snapshot as returned by `restic snapshots --json`.
type Snapshot struct {
	ID      string    `json:"id"`
	ShortID string    `json:"short_id"`
	Time    time.Time `json:"time"`
	Tags    []string  `json:"tags"`
	Paths   []string  `json:"paths"`
}

// ListSnapshots returns snapshots matching the provided tags, oldest first.
func ListSnapshots(ctx context.Context, bin BinaryInfo, creds *config.Credentials, tags []string) ([]Snapshot, error) {
	args := []string{"snapshots", "--json"}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	stdout, stderr, err := runCommand(ctx, bin, creds, args, nil)
	if err != nil {
		return nil, fmt.Errorf("restic: list snapshots: %w: %s", err, strings.TrimSpace(stderr))
	}
	var snaps []Snapshot
	if err := json.Unmarshal([]byte(stdout), &snaps); err != nil {
		return nil, fmt.Errorf("restic: parse snapshots json: %w", err)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Time.Before(snaps[j].Time) })
	return snaps, nil
}

func isNotRepository(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "is not a repository") ||
		strings.Contains(s, "does not look like a restic repository") ||
		strings.Contains(s, "unable to open repository")
}

func runCommand(ctx context.Context, bin BinaryInfo, creds *config.Credentials, args []string, stdin io.Reader) (string, string, error) {
	cmd := exec.CommandContext(ctx, bin.Path, args...)
	cmd.Env = creds.Environ()
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}
