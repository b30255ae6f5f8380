package config

import "time"

type Server interface {
	Host() string
	Port() int
	Address() string
	ReadTimeout() time.Duration
	ShutdownTimeout() time.Duration
	DBReadTimeout() time.Duration
	DBWriteTimeout() time.Duration
}

type Logger interface {
	Level() string
	AsJSON() bool
}

type Database interface {
	DSN() string
}

type Lock interface {
	// Backend is one of postgres, redis, memory.
	Backend() string
	LeaseTTL() time.Duration
}

type Redis interface {
	Address() string
	Password() string
	DB() int
	DialTimeout() time.Duration
}

type Kafka interface {
	Brokers() []string
	Enabled() bool
	RunEventsTopic() string
}

type Planning interface {
	PeriodDays() int
	MaxBOMDepth() int
	SnapshotRetryAttempts() uint64
	SnapshotRetryBase() time.Duration
	// ShortageScope is lead_time or horizon.
	ShortageScope() string
	StaleRunAfter() time.Duration
	// StaleSweepInterval of zero disables the stale run sweep.
	StaleSweepInterval() time.Duration
}
