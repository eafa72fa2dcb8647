package linux_agent

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
)

const (
	KB int64 = 1 << ((iota + 1) * 10)
	MB
	GB
	TB
)

// Error keys for the two precondition failures. The messages are looked up
// through the Translator, so the keys double as error text.
var (
	ErrNotRoot         = errors.New("err_not_root")
	ErrArtifactMissing = errors.New("err_artifact_missing")
)

// ErrInstallAborted is returned by Install when Abort (or Rollback) stopped
// the run between steps.
var ErrInstallAborted = errors.New("install_aborted")

type (
	// InstallStep is one named unit of the installation. Steps run in order;
	// the first failure stops the sequence. A step may carry a rollback
	// action that undoes its effect.
	InstallStep struct {
		Name     string
		run      func() error
		rollback func() error
		done     bool
	}
	// InstallStatus is a message struct handed to the progress function
	// during the installation. All fields are optional and contain the
	// current step, whether the installer as a whole is finished or not, or
	// whether it's been rolled back.
	InstallStatus struct {
		Step    *InstallStep
		Err     error
		Done    bool
		Aborted bool
	}
	// Installer deploys the agent artifact onto the local machine: it copies
	// the artifact into the install directory and the system binary path,
	// then delegates first-run setup to the artifact's own --install routine.
	//
	// The effective-uid probe and the command runner are injectable so the
	// whole sequence is testable without root or systemd.
	Installer struct {
		config           *Config
		workDir          string
		steps            []*InstallStep
		installedSize    int64
		createdDir       bool
		euid             func() int
		run              RunFunc
		abortChannel     chan bool
		actionLock       sync.Mutex
		progressFunction func(InstallStatus)
	}
)

// NewInstaller creates an Installer that looks for the artifact in the
// current working directory.
func NewInstaller(config *Config) *Installer {
	return NewInstallerFrom(".", config)
}

// NewInstallerFrom creates an Installer that looks for the artifact in the
// given directory.
func NewInstallerFrom(workDir string, config *Config) *Installer {
	i := &Installer{
		config:           config,
		workDir:          workDir,
		euid:             osEffectiveUID,
		run:              execRun,
		abortChannel:     make(chan bool, 1),
		progressFunction: func(status InstallStatus) {},
	}
	i.steps = []*InstallStep{
		{Name: "check root", run: i.checkRoot},
		{Name: "check artifact", run: i.checkArtifact},
		{Name: "create install dir", run: i.createInstallDir, rollback: i.removeInstallDir},
		{Name: "install artifact", run: i.installArtifact, rollback: i.removeArtifact},
		{Name: "install binary", run: i.installBinary, rollback: i.removeBinary},
		{Name: "self install", run: i.selfInstall},
	}
	return i
}

// SetProgressFunction sets a callback invoked before each step and after the
// final one.
func (i *Installer) SetProgressFunction(function func(InstallStatus)) {
	i.progressFunction = function
}

// SetEUIDFunc replaces the effective-uid probe, for tests.
func (i *Installer) SetEUIDFunc(euid func() int) { i.euid = euid }

// SetRunFunc replaces the command runner, for tests.
func (i *Installer) SetRunFunc(run RunFunc) { i.run = run }

// Steps returns the ordered step list.
func (i *Installer) Steps() []*InstallStep {
	return i.steps
}

// Install runs all steps in order and stops at the first failure. The
// returned error names what failed; completed steps stay in place (use
// Rollback to undo them). Abort stops the run between steps, in which case
// Install returns ErrInstallAborted.
func (i *Installer) Install() error {
	i.actionLock.Lock()
	defer i.actionLock.Unlock()
	select {
	// Discard an abort signal left over from before the run started.
	case <-i.abortChannel:
	default:
	}
	for _, step := range i.steps {
		select {
		case <-i.abortChannel:
			return ErrInstallAborted
		default:
		}
		i.progressFunction(InstallStatus{Step: step})
		if err := step.run(); err != nil {
			i.progressFunction(InstallStatus{Step: step, Err: err})
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		step.done = true
	}
	i.progressFunction(InstallStatus{Done: true})
	return nil
}

// Abort can be called to stop a running installation. The installer will
// usually not stop immediately, but finish the step in progress.
//
// Use Rollback() instead of Abort() if you want the completed steps undone
// as well.
func (i *Installer) Abort() {
	select {
	case i.abortChannel <- true:
	default:
	}
}

// Rollback undoes the completed steps in reverse order, best effort. It will
// not remove an install directory that already existed before the run.
//
// Rollback implicitly calls Abort() and waits for a running installation to
// stop before undoing anything.
func (i *Installer) Rollback() {
	i.Abort()
	i.actionLock.Lock()
	defer i.actionLock.Unlock()
	for p := len(i.steps) - 1; p >= 0; p-- {
		step := i.steps[p]
		if !step.done || step.rollback == nil {
			continue
		}
		if err := step.rollback(); err != nil {
			i.progressFunction(InstallStatus{Step: step, Err: err})
		}
		step.done = false
	}
	i.progressFunction(InstallStatus{Aborted: true})
}

func (i *Installer) checkRoot() error {
	if i.euid() != 0 {
		return ErrNotRoot
	}
	return nil
}

func (i *Installer) checkArtifact() error {
	info, err := os.Stat(i.artifactSource())
	if err != nil || info.IsDir() {
		return ErrArtifactMissing
	}
	parent := path.Dir(i.config.InstallDir)
	if space := osDiskSpace(parent); space >= 0 && space < info.Size() {
		return fmt.Errorf("not enough space on %s for %d bytes", parent, info.Size())
	}
	return nil
}

func (i *Installer) createInstallDir() error {
	if _, err := os.Stat(i.config.InstallDir); err == nil {
		// Idempotent: a leftover directory from a previous run is fine, but
		// it must not be deleted on rollback.
		i.createdDir = false
		return nil
	}
	if parent := path.Dir(i.config.InstallDir); !osFileWriteAccess(parent) {
		return fmt.Errorf("install location is not writeable: '%s'", parent)
	}
	if err := os.MkdirAll(i.config.InstallDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", i.config.InstallDir, err)
	}
	i.createdDir = true
	return nil
}

func (i *Installer) installArtifact() error {
	return i.copyArtifact(i.config.ArtifactPath())
}

func (i *Installer) installBinary() error {
	return i.copyArtifact(i.config.BinPath)
}

// selfInstall invokes the installed artifact's own --install routine, which
// installs host dependencies and registers the systemd service. Its exit
// status decides the final install result.
func (i *Installer) selfInstall() error {
	if err := i.run(i.config.BinPath, "--install"); err != nil {
		return fmt.Errorf("%s --install: %w", i.config.BinPath, err)
	}
	return nil
}

func (i *Installer) removeInstallDir() error {
	if !i.createdDir {
		return nil
	}
	// Do not os.RemoveAll! By this point only the artifact copy has been in
	// the directory, and removeArtifact has already run.
	return os.Remove(i.config.InstallDir)
}

func (i *Installer) removeArtifact() error {
	return os.Remove(i.config.ArtifactPath())
}

func (i *Installer) removeBinary() error {
	return os.Remove(i.config.BinPath)
}

func (i *Installer) artifactSource() string {
	return path.Join(i.workDir, i.config.ArtifactName)
}

// copyArtifact copies the artifact byte for byte to the target path and
// marks it executable.
func (i *Installer) copyArtifact(target string) error {
	src, err := os.Open(i.artifactSource())
	if err != nil {
		return fmt.Errorf("open %s: %w", i.artifactSource(), err)
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("copy to %s: %w", target, err)
	}
	// The O_CREATE mode only applies to new files; an overwritten copy needs
	// its executable bit restored explicitly.
	if err := os.Chmod(target, 0755); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	i.installedSize += written
	return nil
}

// Size returns the bytes copied so far.
func (i *Installer) Size() int64 { return i.installedSize }

// SizeString returns a human-readable version of Size(), appending a size
// suffix, as needed.
func (i *Installer) SizeString() string {
	size := i.Size()
	switch {
	case size < KB:
		return fmt.Sprintf("%dB", size)
	case size < MB:
		return fmt.Sprintf("%.2fKB", float64(size)/float64(KB))
	case size < GB:
		return fmt.Sprintf("%.2fMB", float64(size)/float64(MB))
	case size < TB:
		return fmt.Sprintf("%.2fGB", float64(size)/float64(GB))
	default:
		return fmt.Sprintf("%.2fTB", float64(size)/float64(TB))
	}
}
