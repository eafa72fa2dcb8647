// Package builder turns the agent sources into a single self-contained
// executable and packages it, together with the installer, into the
// distribution tarball.
package builder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// DescriptorFilename is where the build descriptor is written, next to the
// build output. An existing descriptor is overwritten silently.
const DescriptorFilename = "build.yml"

type (
	// Descriptor declares what gets built: the entry point package, the
	// output path, and the runtime modules the artifact depends on. The list
	// is declared, not inferred, and is recorded for the build log; it is
	// the packaging tool that resolves the actual import graph.
	Descriptor struct {
		Entry   string   `yaml:"entry"`
		Output  string   `yaml:"output"`
		Modules []string `yaml:"modules"`
		Ldflags string   `yaml:"ldflags"`
	}

	// Builder drives the packaging pipeline: toolchain check, descriptor
	// write, build, size report, archive. Any failing stage aborts the whole
	// build; nothing is retried.
	Builder struct {
		Descriptor Descriptor
		// Tool is the packaging toolchain command, "go" unless overridden.
		Tool string
		// DistDir receives the distribution archive.
		DistDir string

		run      func(name string, args ...string) error
		lookPath func(file string) (string, error)
	}
)

// New creates a Builder with the default toolchain.
func New(descriptor Descriptor, distDir string) *Builder {
	return &Builder{
		Descriptor: descriptor,
		Tool:       "go",
		DistDir:    distDir,
		run:        execRun,
		lookPath:   exec.LookPath,
	}
}

// SetRunFunc replaces the command runner, for tests.
func (b *Builder) SetRunFunc(run func(name string, args ...string) error) { b.run = run }

// SetLookPathFunc replaces the toolchain probe, for tests.
func (b *Builder) SetLookPathFunc(lookPath func(string) (string, error)) { b.lookPath = lookPath }

// CheckToolchain verifies the packaging toolchain is installed. It does not
// mutate the host; the error carries the install hint instead.
func (b *Builder) CheckToolchain() error {
	if _, err := b.lookPath(b.Tool); err != nil {
		return fmt.Errorf(
			"packaging toolchain '%s' not found, install it first (e.g. apt-get install -y golang-go): %w",
			b.Tool, err,
		)
	}
	return nil
}

// WriteDescriptor serializes the build descriptor next to the output path,
// before the packaging tool runs, so a failed build still leaves a record of
// what was attempted.
func (b *Builder) WriteDescriptor() error {
	content, err := yaml.Marshal(b.Descriptor)
	if err != nil {
		return fmt.Errorf("marshal build descriptor: %w", err)
	}
	path := b.DescriptorPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write build descriptor: %w", err)
	}
	return nil
}

// DescriptorPath returns where WriteDescriptor puts the descriptor.
func (b *Builder) DescriptorPath() string {
	return filepath.Join(filepath.Dir(b.Descriptor.Output), DescriptorFilename)
}

// Build runs the full pipeline up to (not including) the archive step:
// toolchain check, descriptor write, packaging tool invocation, and output
// verification. It returns the size of the produced artifact.
func (b *Builder) Build() (int64, error) {
	if err := b.CheckToolchain(); err != nil {
		return 0, err
	}
	if err := b.WriteDescriptor(); err != nil {
		return 0, err
	}
	if err := b.buildExecutable(b.Descriptor.Entry, b.Descriptor.Output); err != nil {
		return 0, err
	}
	info, err := os.Stat(b.Descriptor.Output)
	if err != nil {
		return 0, fmt.Errorf("build produced no output at %s: %w", b.Descriptor.Output, err)
	}
	return info.Size(), nil
}

// BuildExtra builds an additional executable (the installer) with the same
// toolchain and flags, without touching the descriptor.
func (b *Builder) BuildExtra(entry, output string) error {
	if err := b.buildExecutable(entry, output); err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("build produced no output at %s: %w", output, err)
	}
	return nil
}

func (b *Builder) buildExecutable(entry, output string) error {
	args := []string{"build", "-trimpath", "-o", output}
	if b.Descriptor.Ldflags != "" {
		args = append(args, "-ldflags", b.Descriptor.Ldflags)
	}
	args = append(args, entry)
	if err := b.run(b.Tool, args...); err != nil {
		return fmt.Errorf("%s %s failed: %w", b.Tool, entry, err)
	}
	return nil
}

func execRun(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// SizeString returns a human-readable file size summary for the build
// report.
func SizeString(size int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case size < kb:
		return fmt.Sprintf("%dB", size)
	case size < mb:
		return fmt.Sprintf("%.2fKB", float64(size)/float64(kb))
	case size < gb:
		return fmt.Sprintf("%.2fMB", float64(size)/float64(mb))
	default:
		return fmt.Sprintf("%.2fGB", float64(size)/float64(gb))
	}
}
