// The activity agent artifact. Supports three modes:
//
//	activity_agent --install     first-run setup (root): install host
//	                             dependencies, copy itself into place,
//	                             register and enable the systemd service
//	activity_agent --daemon      the systemd-managed run loop
//	activity_agent --uninstall   remove service registration and copies
//
// After --install the agent keeps running, matching the historical
// behavior of the install flow.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/grandchild/linux_agent"
)

var version = "dev" // set via -ldflags at build time

func main() {
	install := pflag.Bool("install", false, "run first-time setup and register the systemd service")
	uninstall := pflag.Bool("uninstall", false, "remove the service registration and installed copies")
	daemon := pflag.Bool("daemon", false, "run the agent loop (used by the systemd unit)")
	showVersion := pflag.Bool("version", false, "print the agent version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	config, err := linux_agent.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logfile, err := linux_agent.StartLogging(config.LogFile, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logfile.Close()

	if *uninstall {
		if err := linux_agent.NewSelfInstaller(config).Uninstall(); err != nil {
			log.Printf("Uninstall failed: %v", err)
			os.Exit(1)
		}
		log.Printf("Agent uninstalled")
		return
	}

	if *install {
		log.Printf("Installation mode activated")
		if err := linux_agent.NewSelfInstaller(config).Install(); err != nil {
			log.Printf("Installation failed: %v", err)
			os.Exit(1)
		}
		log.Printf("Installation completed. Starting agent...")
	} else if *daemon {
		log.Printf("Daemon mode activated")
	}

	agent, err := linux_agent.NewAgent(config)
	if err != nil {
		log.Printf("Agent startup failed: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := agent.Run(ctx); err != nil {
		log.Printf("Agent crashed: %v", err)
		os.Exit(1)
	}
}
