package runtime

// set at build time via -ldflags "-X github.com/autobrr/propfilter/pkg/runtime.Version=..."
var (
	Version   = "0.0.0-dev"
	GitCommit = "unknown"
	Timestamp = "unknown"
)
