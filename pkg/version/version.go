package version

// Set via -ldflags at build time.
var (
	Version   = "UNKNOWN"
	GitCommit = "UNKNOWN"
)
