package settings

// DB-backed setting keys and their defaults.
const (
	// TokenSweepIntervalSecondsKey overrides the token sweep interval in seconds.
	TokenSweepIntervalSecondsKey = "TOKEN_SWEEP_INTERVAL_SECONDS"
	// MinTokenSweepIntervalSeconds is the smallest accepted override.
	MinTokenSweepIntervalSeconds = 10
)
