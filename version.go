package lambdametrics

// Version information for the lambdametrics layer
const (
	// Version is reported in the layer_version label of every series
	Version = "0.3.0"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
