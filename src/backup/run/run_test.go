package run

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"hostbackup/src/config"
	"hostbackup/src/dockercli"
	"hostbackup/src/logging"
	"hostbackup/src/restic"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ConfigDir:    dir,
		EnvFile:      filepath.Join(dir, "backup.env"),
		FilesList:    filepath.Join(dir, "files.list"),
		VolumesList:  filepath.Join(dir, "volumes.list"),
		ExcludesFile: filepath.Join(dir, "excludes.list"),
		StagingDir:   filepath.Join(dir, "staging"),
		Hostname:     "testhost",
		Retention:    config.DefaultRetention,
	}
	return cfg
}

func testCreds() *config.Credentials {
	return &config.Credentials{
		Repository: "b2:bucket:host",
		Password:   "pw",
		AccountID:  "id",
		AccountKey: "key",
	}
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

func swapSeams(t *testing.T, ensure func() error, backup func(sources, tags []string, excludeFile string) error, check, prune func() error) {
	t.Helper()
	origEnsure, origBackup, origCheck, origPrune := ensureRepository, backupSources, checkRepository, forgetPrune
	ensureRepository = func(context.Context, restic.BinaryInfo, *config.Credentials) error {
		return ensure()
	}
	backupSources = func(_ context.Context, _ restic.BinaryInfo, _ *config.Credentials, sources, tags []string, excludeFile string, _ io.Writer) error {
		return backup(sources, tags, excludeFile)
	}
	checkRepository = func(context.Context, restic.BinaryInfo, *config.Credentials, io.Writer) error {
		return check()
	}
	forgetPrune = func(context.Context, restic.BinaryInfo, *config.Credentials, config.RetentionPolicy, io.Writer) error {
		return prune()
	}
	t.Cleanup(func() {
		ensureRepository, backupSources, checkRepository, forgetPrune = origEnsure, origBackup, origCheck, origPrune
	})
}

func TestBuildSourcesSkipsMissingWarns(t *testing.T) {
	cfg := testConfig(t)
	present := filepath.Join(cfg.ConfigDir, "present.txt")
	writeFile(t, present, "x")
	writeFile(t, cfg.FilesList, present+"\n/definitely/not/here\n")

	var buf bytes.Buffer
	log := logging.New(logging.LevelDebug, &buf)

	sources, err := BuildSources(cfg, log)
	if err != nil {
		t.Fatalf("BuildSources: %v", err)
	}
	if !reflect.DeepEqual(sources, []string{present}) {
		t.Fatalf("unexpected sources: %#v", sources)
	}
	if log.WarningCount() != 1 || !strings.Contains(buf.String(), "/definitely/not/here") {
		t.Fatalf("expected one warning naming the missing path, got %q", buf.String())
	}
}

func TestBuildSourcesAppendsStagingOnce(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StagingDir, "a.tar.gz"), "a")
	writeFile(t, filepath.Join(cfg.StagingDir, "b.tar.gz"), "b")

	log := logging.New(logging.LevelError, io.Discard)
	sources, err := BuildSources(cfg, log)
	if err != nil {
		t.Fatalf("BuildSources: %v", err)
	}
	if !reflect.DeepEqual(sources, []string{cfg.StagingDir}) {
		t.Fatalf("expected single staging entry, got %#v", sources)
	}
}

func TestBuildSourcesEmptyIsFatal(t *testing.T) {
	cfg := testConfig(t)
	log := logging.New(logging.LevelError, io.Discard)
	if _, err := BuildSources(cfg, log); err == nil {
		t.Fatal("expected fatal error for empty source set")
	}
}

func TestDriverEmptySourcesNeverInvokesEngine(t *testing.T) {
	cfg := testConfig(t)
	backupCalled := false
	swapSeams(t,
		func() error { return nil },
		func([]string, []string, string) error { backupCalled = true; return nil },
		func() error { return nil },
		func() error { return nil },
	)

	d := &Driver{
		Cfg:    cfg,
		Creds:  testCreds(),
		Docker: dockercli.NewFake(),
		Log:    logging.New(logging.LevelError, io.Discard),
	}
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty source set")
	}
	if backupCalled {
		t.Fatal("backup engine must not run with an empty source set")
	}
}

func TestDriverFullCycle(t *testing.T) {
	cfg := testConfig(t)
	present := filepath.Join(cfg.ConfigDir, "notes.txt")
	writeFile(t, present, "notes")
	writeFile(t, cfg.FilesList, present+"\n")
	writeFile(t, cfg.VolumesList, "pgdata\nappdata\n")
	writeFile(t, cfg.ExcludesFile, "*.tmp\n")

	fake := dockercli.NewFake()
	fake.Volumes["pgdata"] = []byte("pg")
	fake.Volumes["appdata"] = []byte("app")

	var order []string
	var gotSources, gotTags []string
	var gotExclude string
	swapSeams(t,
		func() error { order = append(order, "ensure"); return nil },
		func(sources, tags []string, excludeFile string) error {
			order = append(order, "backup")
			gotSources, gotTags, gotExclude = sources, tags, excludeFile
			return nil
		},
		func() error { order = append(order, "check"); return nil },
		func() error { order = append(order, "prune"); return nil },
	)

	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	d := &Driver{
		Cfg:    cfg,
		Creds:  testCreds(),
		Docker: fake,
		Log:    logging.New(logging.LevelError, io.Discard),
		Now:    func() time.Time { return now },
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !reflect.DeepEqual(order, []string{"ensure", "backup", "check", "prune"}) {
		t.Fatalf("unexpected state order: %v", order)
	}
	if !reflect.DeepEqual(gotSources, []string{present, cfg.StagingDir}) {
		t.Fatalf("unexpected sources: %#v", gotSources)
	}
	if gotExclude != cfg.ExcludesFile {
		t.Fatalf("exclude file not passed: %q", gotExclude)
	}
	if len(gotTags) == 0 || gotTags[0] != "name=testhost-20240203T040506Z" {
		t.Fatalf("unexpected tags: %#v", gotTags)
	}
	for _, v := range []string{"pgdata", "appdata"} {
		if _, err := os.Stat(cfg.StagedArchivePath(v)); err != nil {
			t.Fatalf("staged archive for %s missing: %v", v, err)
		}
	}
}

func TestDriverVolumeDumpFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.VolumesList, "pgdata\n")

	fake := dockercli.NewFake()
	fake.Volumes["pgdata"] = []byte("pg")
	fake.FailArchive = true

	engineTouched := false
	swapSeams(t,
		func() error { engineTouched = true; return nil },
		func([]string, []string, string) error { engineTouched = true; return nil },
		func() error { engineTouched = true; return nil },
		func() error { engineTouched = true; return nil },
	)

	d := &Driver{
		Cfg:    cfg,
		Creds:  testCreds(),
		Docker: fake,
		Log:    logging.New(logging.LevelError, io.Discard),
	}
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error from volume dump failure")
	}
	if engineTouched {
		t.Fatal("engine must not run after a failed volume dump")
	}
}

func TestDriverMissingCredentialsFailFirst(t *testing.T) {
	cfg := testConfig(t)
	fake := dockercli.NewFake()
	d := &Driver{
		Cfg:    cfg,
		Creds:  &config.Credentials{},
		Docker: fake,
		Log:    logging.New(logging.LevelError, io.Discard),
	}
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected credential validation failure")
	}
	if len(fake.Calls) != 0 {
		t.Fatalf("no runtime calls expected before validation, got %v", fake.Calls)
	}
}

func TestPreviewIsPure(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.FilesList, "/etc/hosts\n/missing/path\n")
	writeFile(t, cfg.VolumesList, "pgdata\n")

	var out bytes.Buffer
	if err := Preview(cfg, &out, time.Now()); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	for _, want := range []string{"pgdata", "/missing/path", "retention:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("preview missing %q: %s", want, out.String())
		}
	}
	if _, err := os.Stat(cfg.StagingDir); !os.IsNotExist(err) {
		t.Fatalf("preview must not create staging, stat err = %v", err)
	}
}

func TestClean(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StagingDir, "a.tar.gz"), "a")
	writeFile(t, filepath.Join(cfg.StagingDir, "keep.txt"), "not an archive")

	var out bytes.Buffer
	if err := Clean(cfg, &out); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.StagingDir, "a.tar.gz")); !os.IsNotExist(err) {
		t.Fatal("staged archive not removed")
	}
	if _, err := os.Stat(filepath.Join(cfg.StagingDir, "keep.txt")); err != nil {
		t.Fatalf("non-archive file must survive clean: %v", err)
	}
}
