package linux_agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SelfInstaller is the agent's own first-run setup, invoked as
// "activity_agent --install". It installs host dependencies, copies the
// running executable into its permanent locations, and registers the
// systemd service.
type SelfInstaller struct {
	config     *Config
	service    *Service
	run        RunFunc
	euid       func() int
	executable func() (string, error)
}

// NewSelfInstaller creates a SelfInstaller for the given configuration.
func NewSelfInstaller(config *Config) *SelfInstaller {
	s := &SelfInstaller{
		config:     config,
		service:    NewService(config),
		run:        execRun,
		euid:       osEffectiveUID,
		executable: os.Executable,
	}
	return s
}

// SetRunFunc replaces the command runner, for tests. The service wrapper
// shares it.
func (s *SelfInstaller) SetRunFunc(run RunFunc) {
	s.run = run
	s.service.SetRunFunc(run)
}

// SetEUIDFunc replaces the effective-uid probe, for tests.
func (s *SelfInstaller) SetEUIDFunc(euid func() int) { s.euid = euid }

// SetExecutableFunc replaces the running-executable lookup, for tests.
func (s *SelfInstaller) SetExecutableFunc(executable func() (string, error)) {
	s.executable = executable
}

// Install runs the full self-install sequence. Dependency installation is
// best effort and never fails the run; everything after it must succeed.
func (s *SelfInstaller) Install() error {
	if s.euid() != 0 {
		return ErrNotRoot
	}
	s.InstallDependencies()
	if err := s.setupAutostart(); err != nil {
		return err
	}
	return nil
}

// Uninstall removes the service registration and the installed copies. Best
// effort: a partial installation is cleaned up as far as possible.
func (s *SelfInstaller) Uninstall() error {
	if s.euid() != 0 {
		return ErrNotRoot
	}
	if err := s.service.Deregister(); err != nil {
		return err
	}
	for _, target := range []string{s.config.BinPath, s.config.ArtifactPath()} {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			log.Printf("Error deleting %s", target)
		}
	}
	return nil
}

// InstallDependencies checks each configured dependency and installs the
// missing ones. A dependency that fails to install is logged and skipped;
// the agent degrades rather than blocking the whole setup.
func (s *SelfInstaller) InstallDependencies() {
	for _, dep := range s.config.Dependencies {
		if s.dependencyPresent(dep) {
			log.Printf("%s is already installed", dep.Name)
			continue
		}
		log.Printf("Installing %s...", dep.Name)
		if err := s.installDependency(dep); err != nil {
			log.Printf("Failed to install %s, continuing...", dep.Name)
			continue
		}
		log.Printf("%s installed successfully", dep.Name)
	}
}

func (s *SelfInstaller) dependencyPresent(dep Dependency) bool {
	return shellRun(s.run, dep.Check) == nil
}

func (s *SelfInstaller) installDependency(dep Dependency) error {
	for _, command := range dep.Install {
		if err := shellRun(s.run, command); err != nil {
			return fmt.Errorf("'%s': %w", command, err)
		}
	}
	if !s.dependencyPresent(dep) {
		return fmt.Errorf("%s still missing after install", dep.Name)
	}
	return nil
}

// setupAutostart copies the running executable into the install directory
// and the system binary path, then registers the service unit. The copies
// are skipped when the agent is already running from the target path, so
// re-running --install from an installed agent stays idempotent.
func (s *SelfInstaller) setupAutostart() error {
	if !s.service.Available() {
		return fmt.Errorf("systemctl not found, this agent requires systemd")
	}
	if err := os.MkdirAll(s.config.InstallDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", s.config.InstallDir, err)
	}
	configDir := filepath.Join(s.config.InstallDir, "configs")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("create configs dir: %w", err)
	}
	// Reference copy of the embedded configuration, for the operator; the
	// agent itself reads only the compiled-in version.
	reference := filepath.Join(configDir, configFilename)
	if err := os.WriteFile(reference, []byte(MustGetResource(configFilename)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", reference, err)
	}
	current, err := s.executable()
	if err != nil {
		return fmt.Errorf("locate running executable: %w", err)
	}
	for _, target := range []string{s.config.BinPath, s.config.ArtifactPath()} {
		if current == target {
			continue
		}
		if err := copyExecutable(current, target); err != nil {
			return err
		}
		log.Printf("Agent copied to %s", target)
	}
	if err := s.service.Register(); err != nil {
		return fmt.Errorf("register service: %w", err)
	}
	log.Printf("Service %s enabled for autostart", s.config.UnitName)
	return nil
}

func copyExecutable(source, target string) error {
	content, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	if err := os.WriteFile(target, content, 0755); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return os.Chmod(target, 0755)
}
