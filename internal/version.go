package internal

// set at build time through -ldflags "-X"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func FullVersion() string {
	if Version == "dev" && len(GitCommit) >= 8 && GitCommit != "unknown" {
		return "dev+" + GitCommit[:8]
	}
	return Version
}

// VersionLine is what `npustat version` prints.
func VersionLine() string {
	return "npustat version: " + FullVersion() + " (commit " + GitCommit + ", built " + BuildDate + ")"
}
