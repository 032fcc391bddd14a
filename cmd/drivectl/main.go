// drivectl - rate-limit aware client for the Internxt Drive and Network APIs
package main

import (
	"os"

	"github.com/internxt/drivectl/internal/cli"
	"github.com/internxt/drivectl/internal/version"
)

// Version information, overridden with -ldflags at release time.
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
