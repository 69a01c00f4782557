package version

import "fmt"

// Populated at build time with -ldflags "-X ...".
var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for the startup log and -version output.
func String() string {
	return fmt.Sprintf("grabsend %s (%s, built %s)", Version, GitSHA, BuildTime)
}
