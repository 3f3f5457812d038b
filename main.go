package main

import (
	"os"

	"github.com/krishisahay/krishisahay-go/cmd"
	"github.com/krishisahay/krishisahay-go/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	build := buildinfo.NewContext(version, buildDate)
	if err := cmd.RootCommand(build).Execute(); err != nil {
		os.Exit(1)
	}
}
