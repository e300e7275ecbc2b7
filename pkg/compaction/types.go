package compaction

import "time"

// Retention holds the per-tier retention durations driving the pipeline's
// cutoffs. Rows older than a tier's retention are promoted into the next
// tier (or deleted outright for the weekly tier).
type Retention struct {
	RawDays     int
	HourlyDays  int
	DailyDays   int
	WeeklyYears int
}

// TotalDays is how long any trace of a player's history survives; it bounds
// the level-up event log, which is pruned by age alone.
func (r Retention) TotalDays() int {
	return r.DailyDays + r.WeeklyYears*365
}

// Stage names, used for logging and metric labels.
const (
	StageRawToHourly   = "raw_to_hourly"
	StageHourlyToDaily = "hourly_to_daily"
	StageDailyToWeekly = "daily_to_weekly"
	StageWeeklyExpiry  = "weekly_expiry"
	StageEventPruning  = "event_pruning"
)

// StageReport carries one promotion stage's counters.
type StageReport struct {
	Promoted    int `json:"promoted"`
	Deleted     int `json:"deleted"`
	GroupErrors int `json:"group_errors"`
}

// Report summarizes one full pipeline run for logs and health checks.
type Report struct {
	RawToHourly   StageReport   `json:"raw_to_hourly"`
	HourlyToDaily StageReport   `json:"hourly_to_daily"`
	DailyToWeekly StageReport   `json:"daily_to_weekly"`
	WeeklyDeleted int           `json:"weekly_deleted"`
	EventsDeleted int           `json:"events_deleted"`
	Duration      time.Duration `json:"duration"`
}

// TotalPromoted sums summary upserts across the three promotion stages.
func (r *Report) TotalPromoted() int {
	return r.RawToHourly.Promoted + r.HourlyToDaily.Promoted + r.DailyToWeekly.Promoted
}

// TotalDeleted sums row deletions across all five stages.
func (r *Report) TotalDeleted() int {
	return r.RawToHourly.Deleted + r.HourlyToDaily.Deleted + r.DailyToWeekly.Deleted +
		r.WeeklyDeleted + r.EventsDeleted
}

// GroupErrors sums skipped groups across the promotion stages.
func (r *Report) GroupErrors() int {
	return r.RawToHourly.GroupErrors + r.HourlyToDaily.GroupErrors + r.DailyToWeekly.GroupErrors
}
