/*
Package storage provides the pluggable storage abstraction for skilltrend
progression history.

# Storage Interface

skilltrend uses an interface-based design to support multiple backends:
  - memory: In-memory storage for testing and ephemeral workloads
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Store interface, which covers durable CRUD over
five record families plus the compaction-source read queries:

	snapshots          raw per-capture skill profiles (append-only)
	hourly_summaries   one row per (hour, player)
	daily_summaries    one row per (calendar date, player)
	weekly_summaries   one row per (ISO week, player)
	level_ups          append-only event log, pruned by age

# Tiers and Lifecycle

Rows flow one way through the tiers and are deleted from the source after
promotion:

	Snapshot -> HourlySummary -> DailySummary -> WeeklySummary -> deleted

Summary families carry a uniqueness constraint on (period key, player):
InsertPeriodSummary is an upsert that fully replaces any prior row for that
key. No entity is ever promoted back to a finer tier.

# Failure Semantics

Storage errors are reported to the caller and are non-fatal to the process.
A failed write for one player must not abort a batch operation for others;
batching and isolation live in the callers (pkg/snapshot, pkg/compaction),
not here.

# See Also

  - memory.New() for in-memory storage
  - badger.New() for persistent BadgerDB storage
  - pkg/compaction for the promotion pipeline
  - pkg/trend for tier-selecting queries
*/
package storage
