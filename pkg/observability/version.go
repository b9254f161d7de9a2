package observability

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/loomhq/loom/pkg/observability.Version=...".
var Version = "dev"
