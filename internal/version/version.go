// Package version holds build metadata injected via ldflags.
package version

// Set with -ldflags "-X github.com/Skufu/heartrisk/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
