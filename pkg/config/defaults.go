package config

// Output and generation defaults.
const (
	DefaultOutputDir     = "sip"
	DefaultJobs          = -1
	DefaultSelect        = ".*"
	DefaultOmit          = ""
	DefaultTraceDiscards = false
	DefaultDumpItems     = false
)

// Cache defaults.
const (
	DefaultCacheEnabled  = true
	DefaultCacheDir      = ""
	DefaultCacheMaxBytes = 64 * 1024 * 1024
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Observability defaults.
const (
	DefaultOTLPEndpoint    = ""
	DefaultOTLPInsecure    = false
	DefaultSampleRatio     = 1.0
	DefaultPrometheusAddr  = ""
	DefaultShutdownTimeout = 5
)
