package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default locations; every one of them can be overridden by a CLI flag.
const (
	DefaultConfigDir  = "/etc/hostbackup"
	DefaultStagingDir = "/var/backups/hostbackup/staging"
	DefaultLogFile    = "/var/log/hostbackup.log"
	DefaultLockFile   = "/run/hostbackup.lock"
	DefaultCronFile   = "/etc/cron.d/hostbackup"
)

// Env file keys beyond the four engine credentials.
const (
	EnvPassphrase = "HOSTBACKUP_PASSPHRASE"
	EnvUploadURL  = "HOSTBACKUP_CONFIG_UPLOAD_URL"
)

// RetentionPolicy holds the four keep tiers passed verbatim to the backup
// engine's forget/prune operation. This tool keeps no snapshot state of its
// own; the engine owns snapshot lifecycle.
type RetentionPolicy struct {
	Daily   int
	Weekly  int
	Monthly int
	Yearly  int
}

// DefaultRetention is applied when the env file sets no KEEP_* keys.
var DefaultRetention = RetentionPolicy{Daily: 7, Weekly: 4, Monthly: 6, Yearly: 2}

// Config is the orchestrator's full configuration, resolved once at
// startup and passed explicitly to every component.
type Config struct {
	ConfigDir    string
	EnvFile      string
	FilesList    string
	VolumesList  string
	ExcludesFile string
	CronFile     string

	// SelfPath is the resolved location of the running binary, captured at
	// startup so config bundles always reference the same artifact.
	SelfPath string

	StagingDir string
	LogFile    string
	LockFile   string

	Hostname  string
	ExtraTags []string
	Retention RetentionPolicy

	// Passphrase for config bundles, empty when the operator should be
	// prompted interactively.
	Passphrase string
	// UploadURL is an optional object-storage destination for encrypted
	// config bundles, e.g. b2://bucket/prefix.
	UploadURL string
}

// Load resolves the configuration from the config dir and the env file
// within it. Overrides may be empty, in which case defaults apply. The env
// file is optional; credentials then come from the process environment.
func Load(configDir, stagingDir, logFile, lockFile string) (*Config, *Credentials, error) {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	if stagingDir == "" {
		stagingDir = DefaultStagingDir
	}
	if logFile == "" {
		logFile = DefaultLogFile
	}
	if lockFile == "" {
		lockFile = DefaultLockFile
	}

	cfg := &Config{
		ConfigDir:    configDir,
		EnvFile:      filepath.Join(configDir, "backup.env"),
		FilesList:    filepath.Join(configDir, "files.list"),
		VolumesList:  filepath.Join(configDir, "volumes.list"),
		ExcludesFile: filepath.Join(configDir, "excludes.list"),
		CronFile:     DefaultCronFile,
		StagingDir:   stagingDir,
		LogFile:      logFile,
		LockFile:     lockFile,
		Retention:    DefaultRetention,
	}

	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			cfg.SelfPath = resolved
		} else {
			cfg.SelfPath = exe
		}
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve hostname: %w", err)
	}
	cfg.Hostname = host

	env, err := ReadEnvFile(cfg.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	creds := credentialsFrom(env)

	cfg.Passphrase = lookup(env, EnvPassphrase)
	cfg.UploadURL = lookup(env, EnvUploadURL)
	if tags := lookup(env, "EXTRA_TAGS"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.ExtraTags = append(cfg.ExtraTags, t)
			}
		}
	}
	if err := applyRetention(&cfg.Retention, env); err != nil {
		return nil, nil, err
	}

	return cfg, creds, nil
}

// StagedArchivePath returns the on-disk path of a volume's staged archive.
func (c *Config) StagedArchivePath(volume string) string {
	return filepath.Join(c.StagingDir, ArchiveName(volume))
}

// RepoArchivePath returns the logical path of a volume's staged archive as
// recorded inside a snapshot: the staging subtree joined with the archive
// name, normalized to a single leading slash. Built here, once, and never
// re-normalized by callers.
func (c *Config) RepoArchivePath(volume string) string {
	return path.Join("/", filepath.ToSlash(c.StagingDir), ArchiveName(volume))
}

// ArchiveName is the staged archive filename for a volume.
func ArchiveName(volume string) string {
	return volume + ".tar.gz"
}

// NameTag generates the snapshot name tag embedding host and timestamp.
func (c *Config) NameTag(now time.Time) string {
	return fmt.Sprintf("%s-%s", c.Hostname, now.UTC().Format("20060102T150405Z"))
}

// Tags returns the full snapshot tag set: the generated name tag followed
// by any operator-configured extra tags.
func (c *Config) Tags(now time.Time) []string {
	tags := []string{"name=" + c.NameTag(now)}
	return append(tags, c.ExtraTags...)
}

// BundlePaths lists the configuration paths included in a config bundle.
// Absent entries are tolerated downstream; an unresolved self path yields
// an empty element that the bundler skips.
func (c *Config) BundlePaths() []string {
	return []string{
		c.EnvFile,
		c.FilesList,
		c.VolumesList,
		c.ExcludesFile,
		c.SelfPath,
		c.CronFile,
	}
}

func applyRetention(r *RetentionPolicy, env map[string]string) error {
	for key, dst := range map[string]*int{
		"KEEP_DAILY":   &r.Daily,
		"KEEP_WEEKLY":  &r.Weekly,
		"KEEP_MONTHLY": &r.Monthly,
		"KEEP_YEARLY":  &r.Yearly,
	} {
		v, ok := env[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s value %q: must be a non-negative integer", key, v)
		}
		*dst = n
	}
	return nil
}

// lookup prefers the env file value, falling back to the process
// environment, matching the original sourced-file behavior.
func lookup(env map[string]string, key string) string {
	if v, ok := env[key]; ok {
		return v
	}
	return os.Getenv(key)
}
