package dockercli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// helperImage is the minimal image used for throwaway archive containers.
const helperImage = "alpine:3"

// RealClient shells out to the docker binary. Arguments are always passed
// as structured lists; nothing user-controlled ever reaches a shell.
type RealClient struct {
	binPath  string
	progress io.Writer
}

// Connect locates the docker binary on PATH and returns a client. progress
// receives container output and may be nil.
func Connect(progress io.Writer) (*RealClient, error) {
	exe, err := exec.LookPath("docker")
	if err != nil {
		return nil, fmt.Errorf("docker binary not found on PATH: %w", err)
	}
	return &RealClient{binPath: exe, progress: progress}, nil
}

func (c *RealClient) VolumeExists(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, c.binPath, "volume", "inspect", name)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("docker: inspect volume %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
}

func (c *RealClient) CreateVolume(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, c.binPath, "volume", "create", name)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker: create volume %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *RealClient) ArchiveVolume(ctx context.Context, volume, hostDir, archiveName string) error {
	args := []string{"run", "--rm",
		"-v", volume + ":/volume:ro",
		"-v", hostDir + ":/staging",
		helperImage,
		"tar", "czf", "/staging/" + archiveName, "-C", "/volume", ".",
	}
	return c.run(ctx, args, fmt.Sprintf("archive volume %s", volume))
}

func (c *RealClient) RestoreVolume(ctx context.Context, volume, hostDir, archiveName string) error {
	args := []string{"run", "--rm",
		"-v", volume + ":/volume",
		"-v", hostDir + ":/staging:ro",
		helperImage,
		"tar", "xzf", "/staging/" + archiveName, "-C", "/volume",
	}
	return c.run(ctx, args, fmt.Sprintf("restore volume %s", volume))
}

func (c *RealClient) run(ctx context.Context, args []string, what string) error {
	cmd := exec.CommandContext(ctx, c.binPath, args...)
	var stderr bytes.Buffer
	if c.progress != nil {
		cmd.Stdout = c.progress
		cmd.Stderr = io.MultiWriter(c.progress, &stderr)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker: %s: %w: %s", what, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
