package dockercli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FakeClient is an in-memory implementation for unit tests. Volumes are
// byte blobs; archiving writes the blob to the host directory and restoring
// reads it back, so round-trip tests compare real bytes.
type FakeClient struct {
	Volumes map[string][]byte
	// Calls records every operation in order, for side-effect assertions.
	Calls []string
	// FailArchive and FailRestore simulate runtime-tool failures.
	FailArchive bool
	FailRestore bool
}

func NewFake() *FakeClient {
	return &FakeClient{Volumes: map[string][]byte{}}
}

func (f *FakeClient) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *FakeClient) VolumeExists(_ context.Context, name string) (bool, error) {
	f.record("exists %s", name)
	_, ok := f.Volumes[name]
	return ok, nil
}

func (f *FakeClient) CreateVolume(_ context.Context, name string) error {
	f.record("create %s", name)
	if _, ok := f.Volumes[name]; !ok {
		f.Volumes[name] = nil
	}
	return nil
}

func (f *FakeClient) ArchiveVolume(_ context.Context, volume, hostDir, archiveName string) error {
	f.record("archive %s -> %s/%s", volume, hostDir, archiveName)
	if f.FailArchive {
		return fmt.Errorf("docker: archive volume %s: simulated failure", volume)
	}
	data, ok := f.Volumes[volume]
	if !ok {
		return &NotFoundError{Name: volume}
	}
	return os.WriteFile(filepath.Join(hostDir, archiveName), data, 0o600)
}

func (f *FakeClient) RestoreVolume(_ context.Context, volume, hostDir, archiveName string) error {
	f.record("restore %s <- %s/%s", volume, hostDir, archiveName)
	if f.FailRestore {
		return fmt.Errorf("docker: restore volume %s: simulated failure", volume)
	}
	if _, ok := f.Volumes[volume]; !ok {
		return &NotFoundError{Name: volume}
	}
	data, err := os.ReadFile(filepath.Join(hostDir, archiveName))
	if err != nil {
		return fmt.Errorf("docker: restore volume %s: %w", volume, err)
	}
	f.Volumes[volume] = data
	return nil
}
