package config

// Matcher defaults.
const (
	DefaultMinHeight = 1
	DefaultStage     = "subtree"
)

// Cache defaults.
const (
	DefaultCacheEnabled    = true
	DefaultCacheMaxEntries = 1024
)

// Batch defaults.
const (
	DefaultBatchWorkers = 4
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Accepted logging.format values.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)
