// Package config holds the executor and store configuration wired from
// cobra/pflag flags in cmd/atlas.
package config

import "time"

// Executor holds the executor's configuration tunables.
type Executor struct {
	// PoolSize is the maximum number of concurrent provider-bound tasks.
	PoolSize int
	// PollInterval is the sleep between scheduling ticks.
	PollInterval time.Duration
}

// DefaultExecutor returns the engine's defaults: pool size 100, 1 second poll.
func DefaultExecutor() Executor {
	return Executor{
		PoolSize:     100,
		PollInterval: time.Second,
	}
}

// Store holds the embedded database's configuration.
type Store struct {
	DataDir string
}

// DefaultStore returns a Store configuration rooted at ./data.
func DefaultStore() Store {
	return Store{DataDir: "./data"}
}
