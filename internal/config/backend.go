package config

// BackendConfig configures the local OS-process-pool backend
// (internal/backend): how many job slots it offers, how many times a job
// may be reported lost before it hard-fails (spec §8 Scenario F), and the
// heartbeat sweep cadence that drives that detection.
type BackendConfig struct {
	Capacity         int64  `yaml:"capacity"`
	MaxRetriesOnLost int    `yaml:"max_retries_on_lost"`
	HeartbeatPeriod  string `yaml:"heartbeat_period"`
	RoundTrip        string `yaml:"round_trip"`
}

// DefaultBackendConfig picks a capacity of 1 per logical CPU, the same
// sizing the teacher's DefaultWorldConfig applies to its fast-parse worker
// pool (runtime.NumCPU, clamped), and a conservative retry budget.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Capacity:         int64(clampedNumCPU(1, 32)),
		MaxRetriesOnLost: 3,
		HeartbeatPeriod:  "30s",
		RoundTrip:        "5s",
	}
}
