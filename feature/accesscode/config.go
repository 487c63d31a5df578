package accesscode

// JobsConfig holds configuration for the periodic reconciliation jobs.
type JobsConfig struct {
	// IntervalMinutes is how often each job runs.
	IntervalMinutes int `mapstructure:"interval_minutes" default:"15"`
	// TimeoutMinutes is the budget for one job run.
	TimeoutMinutes int `mapstructure:"timeout_minutes" default:"10"`
	// LockTTLMinutes is the distributed-lock expiry. It must stay below the
	// job timeout so a crashed worker's lock expires before the next run.
	LockTTLMinutes int `mapstructure:"lock_ttl_minutes" default:"8"`
	// BatchSize caps how many entities one pass loads.
	BatchSize int `mapstructure:"batch_size" default:"500"`
}
