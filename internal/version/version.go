package version

// Version is the release version, set at build time with
// -ldflags "-X github.com/alvmarrod/artifact-weaver/internal/version.Version=..."
var Version = "0.1.0-dev"
