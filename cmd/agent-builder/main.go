// The build pipeline: produces the agent artifact and the distribution
// tarball (artifact + installer, flat layout).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/grandchild/linux_agent/builder"
)

func main() {
	entry := pflag.String("entry", "./cmd/activity-agent", "entry point package of the agent")
	installerEntry := pflag.String("installer-entry", "./cmd/agent-installer", "entry point package of the installer")
	buildDir := pflag.String("build-dir", "build", "directory for build outputs")
	distDir := pflag.String("dist-dir", "dist", "directory for the distribution archive")
	version := pflag.String("version", "dev", "version stamped into the artifact")
	pflag.Parse()

	descriptor := builder.Descriptor{
		Entry:  *entry,
		Output: filepath.Join(*buildDir, "activity_agent"),
		Modules: []string{
			"github.com/GeertJohan/go.rice",
			"github.com/cloudfoundry/jibber_jabber",
			"github.com/spf13/pflag",
			"golang.org/x/sys/unix",
			"golang.org/x/text/language",
			"gopkg.in/yaml.v2",
		},
		Ldflags: fmt.Sprintf("-s -w -X main.version=%s", *version),
	}

	b := builder.New(descriptor, *distDir)
	size, err := b.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Built %s (%s)\n", descriptor.Output, builder.SizeString(size))

	installerOutput := filepath.Join(*buildDir, "agent-installer")
	if err := b.BuildExtra(*installerEntry, installerOutput); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Built %s\n", installerOutput)

	archive, err := b.Archive(installerOutput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Packaged %s\n", archive)
}
