package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns the build metadata injected via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion returns the bare version string for health endpoints.
func GetVersion() string { return version }

// String renders all build metadata on one line for startup logs.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
