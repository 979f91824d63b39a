package configbundle

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostbackup/src/config"
	"hostbackup/src/logging"
	"hostbackup/src/restic"
	"hostbackup/src/safety"
	"hostbackup/src/upload"
)

func TestMain(m *testing.M) {
	scryptWorkFactor = 10
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ConfigDir: filepath.Join(dir, "etc"),
		CronFile:  filepath.Join(dir, "cron", "hostbackup"),
		SelfPath:  filepath.Join(dir, "bin", "hostbackup"),
		Hostname:  "testhost",
		Retention: config.DefaultRetention,
	}
	cfg.EnvFile = filepath.Join(cfg.ConfigDir, "backup.env")
	cfg.FilesList = filepath.Join(cfg.ConfigDir, "files.list")
	cfg.VolumesList = filepath.Join(cfg.ConfigDir, "volumes.list")
	cfg.ExcludesFile = filepath.Join(cfg.ConfigDir, "excludes.list")
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.EnvFile, "RESTIC_PASSWORD=secret\n")
	writeFile(t, cfg.FilesList, "/etc/hosts\n")
	writeFile(t, cfg.SelfPath, "#!/bin/sh\n")
	// Volumes list, excludes and cron file deliberately absent.

	log := logging.New(logging.LevelError, io.Discard)
	outDir := t.TempDir()
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

	encPath, err := Create(cfg, log, outDir, "correct horse", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if filepath.Base(encPath) != "hostbackup-config-testhost-20240304T050607Z.tar.gz.age" {
		t.Fatalf("unexpected bundle name: %s", encPath)
	}

	// Plaintext intermediate must be gone.
	if _, err := os.Stat(strings.TrimSuffix(encPath, ".age")); !os.IsNotExist(err) {
		t.Fatalf("plaintext archive still present, stat err = %v", err)
	}

	root, names, err := Unbundle(encPath, "correct horse", now)
	if err != nil {
		t.Fatalf("Unbundle: %v", err)
	}
	defer os.RemoveAll(root)
	if len(names) != 3 {
		t.Fatalf("expected 3 bundled files, got %v", names)
	}

	extracted := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(cfg.EnvFile, "/")))
	data, err := os.ReadFile(extracted)
	if err != nil {
		t.Fatalf("read extracted env file: %v", err)
	}
	if string(data) != "RESTIC_PASSWORD=secret\n" {
		t.Fatalf("extracted content mismatch: %q", data)
	}
}

func TestUnbundleWrongPassphraseFails(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.EnvFile, "RESTIC_PASSWORD=secret\n")

	log := logging.New(logging.LevelError, io.Discard)
	encPath, err := Create(cfg, log, t.TempDir(), "right", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, err := Unbundle(encPath, "wrong", time.Now()); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestCreateNothingToBundle(t *testing.T) {
	cfg := testConfig(t)
	log := logging.New(logging.LevelError, io.Discard)
	if _, err := Create(cfg, log, t.TempDir(), "pw", time.Now()); err == nil {
		t.Fatal("expected error when no configuration paths exist")
	}
}

func TestApplyDeclinedMutatesNothing(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	staged := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(cfg.EnvFile, "/")))
	writeFile(t, staged, "RESTIC_PASSWORD=new\n")

	var out bytes.Buffer
	applied, err := Apply(cfg, root, safety.Options{}, strings.NewReader("n\n"), &out)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied {
		t.Fatal("declined confirmation must not apply")
	}
	if _, err := os.Stat(cfg.EnvFile); !os.IsNotExist(err) {
		t.Fatalf("live config must be untouched, stat err = %v", err)
	}
	// Extraction stays in place for the operator.
	if _, err := os.Stat(staged); err != nil {
		t.Fatalf("extracted tree must survive a declined restore: %v", err)
	}
}

func TestApplyRestoresAndReassertsPermissions(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.EnvFile, "RESTIC_PASSWORD=old\n")
	os.Chmod(cfg.EnvFile, 0o644)

	root := t.TempDir()
	for live, content := range map[string]string{
		cfg.EnvFile:  "RESTIC_PASSWORD=new\n",
		cfg.SelfPath: "#!/bin/sh\n",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(live, "/"))), content)
	}

	var out bytes.Buffer
	applied, err := Apply(cfg, root, safety.Options{Yes: true}, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !applied {
		t.Fatal("expected apply with Yes option")
	}

	data, err := os.ReadFile(cfg.EnvFile)
	if err != nil || string(data) != "RESTIC_PASSWORD=new\n" {
		t.Fatalf("env file not restored: %q err=%v", data, err)
	}
	fi, err := os.Stat(cfg.EnvFile)
	if err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("env file perms = %v, want 0600", fi.Mode().Perm())
	}
	fi, err = os.Stat(cfg.SelfPath)
	if err != nil || fi.Mode().Perm() != 0o755 {
		t.Fatalf("script perms = %v, want 0755", fi.Mode().Perm())
	}
}

func TestResolvePassphraseConfigured(t *testing.T) {
	got, err := ResolvePassphrase("from-env", true)
	if err != nil || got != "from-env" {
		t.Fatalf("ResolvePassphrase = %q, %v", got, err)
	}
}

func TestResolvePassphrasePrompt(t *testing.T) {
	answers := [][]byte{[]byte("hunter2"), []byte("hunter2")}
	orig := readPassword
	readPassword = func(int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
	defer func() { readPassword = orig }()

	got, err := ResolvePassphrase("", true)
	if err != nil || got != "hunter2" {
		t.Fatalf("ResolvePassphrase = %q, %v", got, err)
	}
}

func TestResolvePassphraseMismatch(t *testing.T) {
	answers := [][]byte{[]byte("one"), []byte("two")}
	orig := readPassword
	readPassword = func(int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
	defer func() { readPassword = orig }()

	if _, err := ResolvePassphrase("", true); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestStorePrefersUploadURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.UploadURL = "b2://bucket/cfg"
	creds := &config.Credentials{Repository: "b2:bucket:host", AccountID: "id", AccountKey: "key"}

	uploaded := false
	repoStored := false
	origDetect, origUpload, origStore := detectCLI, uploadFile, storeInRepo
	detectCLI = func() (upload.BinaryInfo, error) { return upload.BinaryInfo{Path: "/usr/bin/b2"}, nil }
	uploadFile = func(_ context.Context, _ upload.BinaryInfo, _, _ string, _ upload.Destination, _ string, _ io.Writer) error {
		uploaded = true
		return nil
	}
	storeInRepo = func(_ context.Context, _ restic.BinaryInfo, _ *config.Credentials, _ string, _ []string, _ io.Reader, _ io.Writer) error {
		repoStored = true
		return nil
	}
	defer func() { detectCLI, uploadFile, storeInRepo = origDetect, origUpload, origStore }()

	log := logging.New(logging.LevelError, io.Discard)
	bundle := filepath.Join(t.TempDir(), "bundle.tar.gz.age")
	writeFile(t, bundle, "ciphertext")

	if err := Store(context.Background(), cfg, creds, restic.BinaryInfo{Path: "/usr/bin/restic"}, true, bundle, log); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !uploaded || repoStored {
		t.Fatalf("expected CLI upload only: uploaded=%v repoStored=%v", uploaded, repoStored)
	}
}

func TestStoreFallsBackToRepository(t *testing.T) {
	cfg := testConfig(t)
	creds := &config.Credentials{Repository: "b2:bucket:host"}

	repoStored := false
	origStore := storeInRepo
	storeInRepo = func(_ context.Context, _ restic.BinaryInfo, _ *config.Credentials, name string, tags []string, _ io.Reader, _ io.Writer) error {
		repoStored = true
		if name != "/bundle.tar.gz.age" {
			t.Errorf("unexpected stored name %q", name)
		}
		found := false
		for _, tag := range tags {
			if tag == "type=configbundle" {
				found = true
			}
		}
		if !found {
			t.Errorf("missing configbundle tag: %v", tags)
		}
		return nil
	}
	defer func() { storeInRepo = origStore }()

	log := logging.New(logging.LevelError, io.Discard)
	bundle := filepath.Join(t.TempDir(), "bundle.tar.gz.age")
	writeFile(t, bundle, "ciphertext")

	if err := Store(context.Background(), cfg, creds, restic.BinaryInfo{Path: "/usr/bin/restic"}, true, bundle, log); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !repoStored {
		t.Fatal("expected repository storage")
	}
}

func TestStoreLocalFallbackWarns(t *testing.T) {
	cfg := testConfig(t)
	creds := &config.Credentials{}

	var buf bytes.Buffer
	log := logging.New(logging.LevelDebug, &buf)
	bundle := filepath.Join(t.TempDir(), "bundle.tar.gz.age")
	writeFile(t, bundle, "ciphertext")

	if err := Store(context.Background(), cfg, creds, restic.BinaryInfo{}, false, bundle, log); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.Contains(buf.String(), "copy") {
		t.Fatalf("expected operator instruction, got %q", buf.String())
	}
}
