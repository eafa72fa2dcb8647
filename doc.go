// Packaging and installation pipeline for the Linux activity agent.
//
// The agent ships as a single self-contained binary. This package holds the
// pieces shared between the three commands: the installer that places the
// binary on a target machine (cmd/agent-installer), the agent binary itself
// with its self-install routine (cmd/activity-agent), and the build pipeline
// that produces the distribution tarball (cmd/agent-builder, see the builder
// subpackage).
//
// Install locations, service parameters, and the work schedule all come from
// the embedded config.yml; see the "resources" directory.
package linux_agent
