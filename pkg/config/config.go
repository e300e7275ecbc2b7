// Package config defines daemon configuration: koanf-layered settings plus
// fixed tuning constants.
package config

import "time"

// Server defaults
const (
	DefaultAddr        = ":8080"
	DefaultDataDir     = "./data/skilltrend"
	DefaultMaxMemoryMB = 48
)

// Background task tuning
const (
	BadgerGCInterval     = 10 * time.Minute
	BadgerGCDiscardRatio = 0.5

	CompactionMaxRetries = 3
	CompactionRetryDelay = 30 * time.Second
)

// HTTP timeouts
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
	TrendQueryTimeout  = 10 * time.Second
)

// WebSocket configuration for the level-up feed
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
