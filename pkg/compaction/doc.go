/*
Package compaction implements the tiered retention pipeline for skilltrend
progression history.

# Why Tiers?

Raw snapshots are captured every few minutes per online player. Kept
forever, a year of history for one player is tens of thousands of rows.
Long-range trend queries only need the shape of the curve, so old data is
rolled into progressively coarser buckets:

	Raw snapshots (0-7 days)      per-capture precision
	       | compact after rawRetentionDays
	Hourly summaries (7-30 days)  one row per (hour, player)
	       | compact after hourlyRetentionDays
	Daily summaries (30-180 days) one row per (date, player)
	       | compact after dailyRetentionDays
	Weekly summaries (to years)   one row per (ISO week, player)
	       | delete after weeklyRetentionYears

Each arrow is a source-deleting promotion: the fine rows are aggregated into
one summary per (bucket, player) and then removed. Nothing is ever promoted
back down.

# Aggregation

A summary stores start/end power level and per-skill start/end/gain. Power
endpoints come from the minimum and maximum observed in the bucket, which is
only valid because skill levels never decrease; per-skill endpoints come
from the chronologically first and last row. Gain is always end - start,
recomputed from the endpoints.

# Idempotence

Summary writes are upserts keyed by (tier, periodKey, player): running the
pipeline twice over the same window converges to the same rows. A bucket
whose rows straddle the cutoff yields a provisional summary built from the
older portion; the next run with a later cutoff replaces it with the
complete aggregate.

# Scheduling

Run is invoked on a timer (see pkg/server tasks). A mutex enforces
single-flight: a tick that arrives while a run is in progress returns
ErrAlreadyRunning and is simply skipped. Per-group failures are logged and
skipped, and a stage withholds its source deletion if any of its groups
failed to upsert, so unaggregated rows survive to the next cycle.
*/
package compaction
