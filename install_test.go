package linux_agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testConfig returns a validated config whose install locations live below a
// temp root, with the directory layout a real target has (existing /opt and
// /usr/local/bin equivalents).
func testConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"opt", "bin", "systemd"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	config := &Config{
		InstallDir:   filepath.Join(root, "opt", "linux_agent"),
		BinPath:      filepath.Join(root, "bin", "activity_agent"),
		ArtifactName: "activity_agent",
		UnitName:     "activity-agent.service",
		UnitDir:      filepath.Join(root, "systemd"),
		LogFile:      filepath.Join(root, "agent.log"),
		Service: ServiceConfig{
			Description: "Linux Activity Agent",
			RestartSec:  10,
			MemoryMax:   "512M",
			CPUQuota:    "50%",
		},
		Agent:    AgentConfig{RunIntervalMin: 10, RunIntervalMax: 60, PollInterval: 300},
		Schedule: ScheduleConfig{Start: "09:00", End: "18:00"},
		Variables: StringMap{
			"artifact": "activity_agent",
		},
	}
	return config
}

// writeArtifact drops a fake agent binary into dir and returns its content.
func writeArtifact(t *testing.T, dir string, content string) []byte {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "activity_agent"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return []byte(content)
}

// testInstaller wires an Installer with a fake root euid and a recording
// runner that succeeds.
func testInstaller(t *testing.T, workDir string, config *Config) (*Installer, *[]string) {
	t.Helper()
	installer := NewInstallerFrom(workDir, config)
	installer.SetEUIDFunc(func() int { return 0 })
	var calls []string
	installer.SetRunFunc(func(name string, args ...string) error {
		calls = append(calls, fmt.Sprintf("%s %v", name, args))
		return nil
	})
	return installer, &calls
}

func TestInstallRequiresRoot(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "binary")
	installer, _ := testInstaller(t, workDir, config)
	installer.SetEUIDFunc(func() int { return 1000 })

	err := installer.Install()
	if !errors.Is(err, ErrNotRoot) {
		t.Fatalf("Install as non-root: got %v, want ErrNotRoot", err)
	}
	if _, statErr := os.Stat(config.InstallDir); !os.IsNotExist(statErr) {
		t.Error("non-root install touched the install dir")
	}
}

func TestInstallRequiresArtifact(t *testing.T) {
	workDir := t.TempDir() // no artifact file here
	config := testConfig(t)
	installer, _ := testInstaller(t, workDir, config)

	err := installer.Install()
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("Install without artifact: got %v, want ErrArtifactMissing", err)
	}
}

func TestInstallPlacesIdenticalCopies(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	content := writeArtifact(t, workDir, "agent-binary-v1")
	installer, calls := testInstaller(t, workDir, config)

	if err := installer.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	for _, target := range []string{config.ArtifactPath(), config.BinPath} {
		got, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("read %s: %v", target, err)
		}
		if string(got) != string(content) {
			t.Errorf("%s differs from the source artifact", target)
		}
		info, err := os.Stat(target)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0111 == 0 {
			t.Errorf("%s is not executable (mode %v)", target, info.Mode())
		}
	}
	want := fmt.Sprintf("%s [--install]", config.BinPath)
	if len(*calls) != 1 || (*calls)[0] != want {
		t.Errorf("delegated call = %v, want [%s]", *calls, want)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "agent-binary-v1")
	installer, _ := testInstaller(t, workDir, config)
	if err := installer.Install(); err != nil {
		t.Fatalf("first install: %v", err)
	}

	// Updated artifact, directory already present from the first run.
	writeArtifact(t, workDir, "agent-binary-v2")
	again, _ := testInstaller(t, workDir, config)
	if err := again.Install(); err != nil {
		t.Fatalf("second install: %v", err)
	}
	for _, target := range []string{config.ArtifactPath(), config.BinPath} {
		got, err := os.ReadFile(target)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "agent-binary-v2" {
			t.Errorf("%s not overwritten by the re-run", target)
		}
	}
}

// A failing delegated self-install must surface in the install result
// instead of being swallowed by unconditional success reporting.
func TestInstallPropagatesSelfInstallFailure(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "binary")
	installer, _ := testInstaller(t, workDir, config)
	installer.SetRunFunc(func(name string, args ...string) error {
		return errors.New("exit status 1")
	})

	err := installer.Install()
	if err == nil {
		t.Fatal("Install reported success despite failed self-install")
	}
	// The copies stay in place: only the delegated setup failed.
	if _, statErr := os.Stat(config.BinPath); statErr != nil {
		t.Error("binary copy missing after self-install failure")
	}
}

func TestRollbackRemovesWhatWasInstalled(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "binary")
	installer, _ := testInstaller(t, workDir, config)
	installer.SetRunFunc(func(name string, args ...string) error {
		return errors.New("exit status 1")
	})

	if err := installer.Install(); err == nil {
		t.Fatal("expected self-install failure")
	}
	installer.Rollback()
	for _, target := range []string{config.ArtifactPath(), config.BinPath, config.InstallDir} {
		if _, err := os.Stat(target); !os.IsNotExist(err) {
			t.Errorf("%s still present after rollback", target)
		}
	}
}

func TestRollbackKeepsPreexistingInstallDir(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "binary")
	if err := os.MkdirAll(config.InstallDir, 0755); err != nil {
		t.Fatal(err)
	}
	installer, _ := testInstaller(t, workDir, config)
	installer.SetRunFunc(func(name string, args ...string) error {
		return errors.New("exit status 1")
	})

	if err := installer.Install(); err == nil {
		t.Fatal("expected self-install failure")
	}
	installer.Rollback()
	if _, err := os.Stat(config.InstallDir); err != nil {
		t.Error("rollback removed an install dir it did not create")
	}
}

func TestAbortStopsInstallBetweenSteps(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "binary")
	installer, _ := testInstaller(t, workDir, config)
	// A slow first step gives the abort signal time to arrive before the
	// file-placing steps run.
	inStep := make(chan struct{})
	installer.SetEUIDFunc(func() int {
		close(inStep)
		time.Sleep(50 * time.Millisecond)
		return 0
	})

	errChannel := make(chan error, 1)
	go func() { errChannel <- installer.Install() }()
	<-inStep
	installer.Abort()

	if err := <-errChannel; !errors.Is(err, ErrInstallAborted) {
		t.Fatalf("aborted Install: got %v, want ErrInstallAborted", err)
	}
	if _, err := os.Stat(config.InstallDir); !os.IsNotExist(err) {
		t.Error("aborted install touched the install dir")
	}
}

// Rollback from another goroutine, like the installer's Ctrl-C handler, must
// wait for the step in progress instead of deleting files out from under it.
func TestRollbackWaitsForRunningInstall(t *testing.T) {
	workDir := t.TempDir()
	config := testConfig(t)
	writeArtifact(t, workDir, "binary")
	installer, _ := testInstaller(t, workDir, config)
	inStep := make(chan struct{})
	installer.SetRunFunc(func(name string, args ...string) error {
		close(inStep)
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	errChannel := make(chan error, 1)
	go func() { errChannel <- installer.Install() }()
	<-inStep
	installer.Rollback()

	// The self-install step was already running, so the run completed; the
	// rollback then undid every step it had marked done.
	if err := <-errChannel; err != nil {
		t.Fatalf("Install: %v", err)
	}
	for _, target := range []string{config.ArtifactPath(), config.BinPath, config.InstallDir} {
		if _, err := os.Stat(target); !os.IsNotExist(err) {
			t.Errorf("%s still present after rollback", target)
		}
	}
}

func TestInstallerSizeString(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512B"},
		{2 * KB, "2.00KB"},
		{3 * MB, "3.00MB"},
		{4 * GB, "4.00GB"},
	}
	for _, c := range cases {
		i := &Installer{installedSize: c.size}
		if got := i.SizeString(); got != c.want {
			t.Errorf("SizeString(%d) = %s, want %s", c.size, got, c.want)
		}
	}
}
