package config

// Exported for testing.
var LoadDotEnv = loadDotEnv
