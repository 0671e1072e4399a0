package utils

const (
	CMDSeparator   = "--"
	DefaultStream  = "default"
	ConfigEnvVar   = "KPROF_CONFIG"
	MicrosPerSec   = 1_000_000
	TimestampField = "timestamp"
)
