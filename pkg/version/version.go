package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var Version string

// Set with -ldflags "-X github.com/amoylab/mdprovider/pkg/version.Commit=..."
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Get returns the release version of the provider
func Get() string {
	return strings.TrimSpace(Version)
}

// String is the one line build description printed by the version command.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		Get(), Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
