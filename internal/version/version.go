package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// UserAgent is sent on every upstream gateway request.
func UserAgent() string {
	return "capture-gateway/" + Version + " (" + GitSHA + ")"
}
