// Package observability provides OpenTelemetry tracing, metrics and
// structured logging for the sipgen CLI and MCP server.
package observability

import (
	"log/slog"

	"github.com/google/uuid"
)

// AppMode tells how the binary was launched. It is a resource attribute
// and a field of every log record.
type AppMode string

// Application modes.
const (
	ModeCLI AppMode = "cli"
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName        = "sipgen"
	defaultShutdownTimeoutSec = 5
)

// Config selects what Init builds.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Mode           AppMode
	// RunID tags every log record and is the service instance of the
	// exported telemetry.
	RunID string

	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	// Empty disables tracing and OTLP metrics.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// Prometheus adds a pull reader to the meter provider; Providers then
	// carries its scrape handler.
	Prometheus bool

	// SampleRatio is the root span sampling ratio; zero samples every
	// root span.
	SampleRatio float64
	// TraceVerbose keeps the per-header spans.
	TraceVerbose bool

	LogLevel slog.Level
	LogJSON  bool

	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup with a fresh run ID.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		RunID:              uuid.NewString(),
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
