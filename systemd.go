package linux_agent

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const unitTemplateResource = "services/activity-agent.service"

// Service renders and registers the agent's systemd unit. All systemctl
// calls go through an injectable RunFunc.
type Service struct {
	config   *Config
	run      RunFunc
	lookPath func(file string) (string, error)
}

// NewService creates a Service for the given configuration.
func NewService(config *Config) *Service {
	return &Service{config: config, run: execRun, lookPath: exec.LookPath}
}

// SetRunFunc replaces the command runner, for tests.
func (s *Service) SetRunFunc(run RunFunc) { s.run = run }

// SetLookPathFunc replaces the systemctl probe, for tests.
func (s *Service) SetLookPathFunc(lookPath func(string) (string, error)) { s.lookPath = lookPath }

// Available checks if systemctl is present on this host.
func (s *Service) Available() bool {
	_, err := s.lookPath("systemctl")
	return err == nil
}

// RenderUnit expands the embedded unit template with the configured service
// parameters.
func (s *Service) RenderUnit() (string, error) {
	templ, err := GetResource(unitTemplateResource)
	if err != nil {
		return "", err
	}
	unit := ExpandVariables(templ, MergeVariables(s.config.Variables, StringMap{
		"binPath":          s.config.BinPath,
		"installDir":       s.config.InstallDir,
		"description":      s.config.Service.Description,
		"restartSec":       strconv.Itoa(s.config.Service.RestartSec),
		"memoryMax":        s.config.Service.MemoryMax,
		"cpuQuota":         s.config.Service.CPUQuota,
		"syslogIdentifier": strings.TrimSuffix(s.config.UnitName, ".service"),
	}))
	return unit, nil
}

// WriteUnit renders the unit and writes it to the configured unit directory,
// replacing any previous version.
func (s *Service) WriteUnit() error {
	unit, err := s.RenderUnit()
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.config.UnitPath(), []byte(unit), 0644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	return nil
}

// Register writes the unit file, reloads systemd, and enables the service
// for autostart. The service is enabled, not started; starting is left to
// the operator.
func (s *Service) Register() error {
	if err := s.WriteUnit(); err != nil {
		return err
	}
	if err := s.run("systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if err := s.run("systemctl", "enable", s.config.UnitName); err != nil {
		return fmt.Errorf("enable service: %w", err)
	}
	return nil
}

// Deregister stops and disables the service and removes the unit file. Each
// step is best effort, so a half-installed service can still be cleaned up.
func (s *Service) Deregister() error {
	_ = s.run("systemctl", "stop", s.config.UnitName)
	_ = s.run("systemctl", "disable", s.config.UnitName)
	if err := os.Remove(s.config.UnitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	_ = s.run("systemctl", "daemon-reload")
	return nil
}
