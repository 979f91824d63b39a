package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// Destination is a parsed object-storage upload target.
// Example: b2://my-bucket/config-backups
type Destination struct {
	Raw    string
	Scheme string
	Bucket string
	Prefix string
}

// SupportedSchemes lists the schemes the parser accepts.
var SupportedSchemes = map[string]struct{}{
	"b2": {},
}

// ParseDestination parses an upload URL like "b2://bucket/prefix".
func ParseDestination(raw string) (Destination, error) {
	d := Destination{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return d, fmt.Errorf("upload URL must not be empty; expected format 'b2://bucket/prefix'")
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || rest == "" {
		return d, fmt.Errorf("invalid upload URL %q; expected format '<scheme>://<bucket>[/prefix]'", raw)
	}
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if _, supported := SupportedSchemes[scheme]; !supported {
		return d, fmt.Errorf("unsupported upload scheme %q", scheme)
	}
	bucket, prefix, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	if bucket == "" {
		return d, fmt.Errorf("upload URL %q is missing a bucket name", raw)
	}
	d.Scheme = scheme
	d.Bucket = bucket
	d.Prefix = strings.Trim(prefix, "/")
	return d, nil
}

// String returns a canonical form of the destination.
func (d Destination) String() string {
	if d.Prefix != "" {
		return fmt.Sprintf("%s://%s/%s", d.Scheme, d.Bucket, d.Prefix)
	}
	return fmt.Sprintf("%s://%s", d.Scheme, d.Bucket)
}

// RemoteName returns the object name for a local file under this
// destination's prefix.
func (d Destination) RemoteName(file string) string {
	return path.Join(d.Prefix, filepath.Base(file))
}

// BinaryInfo describes a detected object-storage CLI.
type BinaryInfo struct {
	Path string
}

// DetectCLI locates the b2 CLI on PATH.
func DetectCLI() (BinaryInfo, error) {
	exe, err := exec.LookPath("b2")
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("b2 CLI not found on PATH: %w", err)
	}
	return BinaryInfo{Path: exe}, nil
}

// Upload authorizes the CLI against the storage account and uploads file
// to the destination bucket under its prefix.
func Upload(ctx context.Context, bin BinaryInfo, accountID, accountKey string, dest Destination, file string, progress io.Writer) error {
	if err := run(ctx, bin, progress, "authorize-account", accountID, accountKey); err != nil {
		return fmt.Errorf("b2: authorize account: %w", err)
	}
	if err := run(ctx, bin, progress, "upload-file", dest.Bucket, file, dest.RemoteName(file)); err != nil {
		return fmt.Errorf("b2: upload %s to %s: %w", file, dest, err)
	}
	return nil
}

func run(ctx context.Context, bin BinaryInfo, progress io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, bin.Path, args...)
	var stderr bytes.Buffer
	if progress != nil {
		cmd.Stdout = progress
		cmd.Stderr = io.MultiWriter(progress, &stderr)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
