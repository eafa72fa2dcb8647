package main

import (
	"os"

	"github.com/grandchild/linux_agent"
)

func main() {
	os.Exit(linux_agent.Run())
}
