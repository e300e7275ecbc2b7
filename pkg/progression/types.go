package progression

import "time"

// Tier represents the granularity at which progression history is stored
type Tier string

const (
	TierRaw    Tier = "raw"    // Per-capture snapshots
	TierHourly Tier = "hourly" // One summary per hour
	TierDaily  Tier = "daily"  // One summary per calendar date
	TierWeekly Tier = "weekly" // One summary per ISO week
)

// Skill identifies a single trainable skill (e.g. "attack", "mining")
type Skill string

// Series selects which level series of a player's history a query reads:
// total power level, or one named skill.
type Series string

// SeriesPower is the sum of all skill levels at a point in time.
const SeriesPower Series = "power"

// SeriesFor returns the series for a single skill.
func SeriesFor(s Skill) Series {
	return Series(s)
}

// Snapshot is one raw capture of a player's full skill profile.
// Created by the snapshot producer, consumed and deleted by the first
// compaction stage, never mutated.
type Snapshot struct {
	Timestamp  time.Time     `json:"timestamp"`
	PlayerID   string        `json:"player_id"`
	PlayerName string        `json:"player_name"`
	Power      int           `json:"power"`
	Skills     map[Skill]int `json:"skills"`
}

// SkillDelta holds the per-skill endpoints of a summary bucket.
// Gain is always recomputed from the two endpoints, never merged.
type SkillDelta struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Gain  int `json:"gain"`
}

// PeriodSummary is one compacted bucket of a player's history. The same
// shape serves the hourly, daily and weekly tiers; only the period key
// granularity differs. At most one row exists per (tier, periodKey, player);
// writes fully replace any prior row for that key.
type PeriodSummary struct {
	PeriodKey  string               `json:"period_key"`
	PlayerID   string               `json:"player_id"`
	PlayerName string               `json:"player_name"`
	StartPower int                  `json:"start_power"`
	EndPower   int                  `json:"end_power"`
	Skills     map[Skill]SkillDelta `json:"skills"`
}

// LevelUpEvent records a single observed skill level increase.
// Append-only and independent of the snapshot/summary pipeline; pruned
// solely by age.
type LevelUpEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Skill      Skill     `json:"skill"`
	OldLevel   int       `json:"old_level"`
	NewLevel   int       `json:"new_level"`
}

// TrendPoint is the tier-agnostic unit returned by trend queries.
// Callers never see which tier produced it.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level"`
}

// Level extracts the requested series value from a snapshot.
func (s Snapshot) Level(series Series) int {
	if series == SeriesPower {
		return s.Power
	}
	return s.Skills[Skill(series)]
}

// EndLevel extracts the requested series end value from a summary.
func (p PeriodSummary) EndLevel(series Series) int {
	if series == SeriesPower {
		return p.EndPower
	}
	return p.Skills[Skill(series)].End
}

// PowerOf computes a power level as the sum of all skill levels.
func PowerOf(skills map[Skill]int) int {
	total := 0
	for _, lvl := range skills {
		total += lvl
	}
	return total
}
