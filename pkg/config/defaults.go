package config

import "time"

// Repository defaults.
const (
	DefaultRepositoryPath        = "."
	DefaultRepositoryFirstParent = false
	DefaultRepositoryLimit       = 0
)

// Analysis defaults.
const (
	DefaultExtension       = ".c"
	DefaultLanguage        = "C"
	DefaultBackend         = "auto"
	DefaultClocBinary      = "cloc"
	DefaultDiffTimeout     = 1000 * time.Second
	DefaultWorkers         = 1
	DefaultCacheSize       = 0
	DefaultMaxBlobSize     = ""
	DefaultDetectRenames   = true
	DefaultRenameThreshold = 0
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Report defaults.
const (
	DefaultReportFormat = "text"
)

// Observability defaults.
const (
	DefaultSampleRatio = 1.0
)
