package linux_agent

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const configFilename = "config.yml"

type (
	// Config is the single source for every path and parameter the pipeline
	// touches. It is loaded once from the embedded config.yml and validated
	// before anything else runs.
	Config struct {
		// InstallDir is the agent's working directory on the target machine.
		InstallDir string `yaml:"install_dir"`
		// BinPath is the well-known location the agent is invoked from (also
		// the ExecStart path in the service unit).
		BinPath string `yaml:"bin_path"`
		// ArtifactName is the file name of the agent executable, both in the
		// distribution archive and inside InstallDir.
		ArtifactName string `yaml:"artifact_name"`
		UnitName     string `yaml:"unit_name"`
		UnitDir      string `yaml:"unit_dir"`
		LogFile      string `yaml:"log_file"`

		Service      ServiceConfig  `yaml:"service"`
		Agent        AgentConfig    `yaml:"agent"`
		Schedule     ScheduleConfig `yaml:"schedule"`
		Dependencies []Dependency   `yaml:"dependencies"`

		// Variables feed template expansion in localized messages and in the
		// service unit template.
		Variables StringMap `yaml:"variables"`
	}

	// ServiceConfig holds the values rendered into the systemd unit.
	ServiceConfig struct {
		Description string `yaml:"description"`
		RestartSec  int    `yaml:"restart_sec"`
		MemoryMax   string `yaml:"memory_max"`
		CPUQuota    string `yaml:"cpu_quota"`
	}

	// AgentConfig controls the daemon loop timing. Intervals are seconds.
	AgentConfig struct {
		RunIntervalMin int `yaml:"run_interval_min"`
		RunIntervalMax int `yaml:"run_interval_max"`
		PollInterval   int `yaml:"poll_interval"`
	}

	// ScheduleConfig is the raw work-schedule shape; see ParseSchedule.
	ScheduleConfig struct {
		Start  string        `yaml:"start"`
		End    string        `yaml:"end"`
		Breaks []BreakConfig `yaml:"breaks"`
	}

	BreakConfig struct {
		Start           string `yaml:"start"`
		DurationMinutes int    `yaml:"duration_minutes"`
	}

	// Dependency describes one host package the agent needs: a command that
	// succeeds when it is already present, and the commands that install it.
	Dependency struct {
		Name    string   `yaml:"name"`
		Check   string   `yaml:"check"`
		Install []string `yaml:"install"`
	}
)

// NewConfig loads and validates the embedded configuration. Derived values
// (install paths, artifact and unit names) are injected into the Variables
// map so messages and the unit template can reference them.
func NewConfig() (*Config, error) {
	return parseConfig(MustGetResource(configFilename))
}

func parseConfig(content string) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", configFilename, err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Variables == nil {
		config.Variables = make(StringMap)
	}
	config.Variables = MergeVariables(config.Variables, StringMap{
		"installDir": config.InstallDir,
		"binPath":    config.BinPath,
		"artifact":   config.ArtifactName,
		"unitName":   config.UnitName,
		"logFile":    config.LogFile,
	})
	return config, nil
}

func (c *Config) validate() error {
	for name, path := range map[string]string{
		"install_dir": c.InstallDir,
		"bin_path":    c.BinPath,
		"unit_dir":    c.UnitDir,
		"log_file":    c.LogFile,
	} {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("%s must be an absolute path, got '%s'", name, path)
		}
	}
	if c.ArtifactName == "" || strings.ContainsRune(c.ArtifactName, '/') {
		return fmt.Errorf("artifact_name must be a bare file name, got '%s'", c.ArtifactName)
	}
	if !strings.HasSuffix(c.UnitName, ".service") {
		return fmt.Errorf("unit_name must end in .service, got '%s'", c.UnitName)
	}
	if c.Agent.RunIntervalMin <= 0 || c.Agent.RunIntervalMax < c.Agent.RunIntervalMin {
		return fmt.Errorf(
			"agent run interval range %d..%d is invalid",
			c.Agent.RunIntervalMin, c.Agent.RunIntervalMax,
		)
	}
	if c.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent poll_interval must be positive, got %d", c.Agent.PollInterval)
	}
	if _, err := ParseSchedule(c.Schedule); err != nil {
		return err
	}
	return nil
}

// ArtifactPath returns the artifact's location inside the install directory.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.InstallDir, c.ArtifactName)
}

// UnitPath returns the full path of the systemd unit file.
func (c *Config) UnitPath() string {
	return filepath.Join(c.UnitDir, c.UnitName)
}
