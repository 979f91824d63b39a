package dockercli

import "context"

// Client is a narrow interface over the docker CLI covering exactly what
// the orchestrator needs. Keep it small so it stays mockable.
type Client interface {
	// VolumeExists reports whether a named volume is known to the runtime.
	VolumeExists(ctx context.Context, name string) (bool, error)
	// CreateVolume creates a named volume.
	CreateVolume(ctx context.Context, name string) error
	// ArchiveVolume runs an ephemeral container mounting the volume
	// read-only and hostDir read-write, archiving the volume root into
	// hostDir/archiveName.
	ArchiveVolume(ctx context.Context, volume, hostDir, archiveName string) error
	// RestoreVolume runs an ephemeral container mounting the volume
	// read-write and hostDir read-only, extracting hostDir/archiveName
	// into the volume root.
	RestoreVolume(ctx context.Context, volume, hostDir, archiveName string) error
}

// NotFoundError reports a volume unknown to the runtime.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return "volume not found: " + e.Name }
