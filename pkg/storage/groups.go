package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/nicktill/skilltrend/pkg/progression"
)

// SourceRow is one compaction-source row flattened for candidate grouping.
// For a raw snapshot both power fields hold the snapshot's power and both
// skills maps hold its skill levels; for a summary row they hold the row's
// start/end endpoints.
type SourceRow struct {
	Time       time.Time
	PlayerID   string
	PlayerName string

	MinPower int
	MaxPower int

	FirstSkills map[progression.Skill]int
	LastSkills  map[progression.Skill]int
}

// GroupCandidates buckets source rows into per (bucket, player) candidate
// groups for the given target tier. Rows are sorted chronologically first so
// that "first" and "last" skills-state are well defined regardless of the
// backend's iteration order.
func GroupCandidates(target progression.Tier, rows []SourceRow) ([]CandidateGroup, error) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})

	groups := make(map[string]*CandidateGroup)
	var order []string

	for _, row := range rows {
		bucket, err := progression.BucketKey(target, row.Time)
		if err != nil {
			return nil, fmt.Errorf("bucket key for tier %q: %w", target, err)
		}

		key := bucket + "\x00" + row.PlayerID
		g, exists := groups[key]
		if !exists {
			g = &CandidateGroup{
				Bucket:      bucket,
				PlayerID:    row.PlayerID,
				PlayerName:  row.PlayerName,
				MinPower:    row.MinPower,
				MaxPower:    row.MaxPower,
				FirstSkills: row.FirstSkills,
			}
			groups[key] = g
			order = append(order, key)
		}

		if row.MinPower < g.MinPower {
			g.MinPower = row.MinPower
		}
		if row.MaxPower > g.MaxPower {
			g.MaxPower = row.MaxPower
		}
		// Rows are chronological, so the latest assignment wins.
		g.LastSkills = row.LastSkills
		g.PlayerName = row.PlayerName
	}

	result := make([]CandidateGroup, 0, len(groups))
	for _, key := range order {
		result = append(result, *groups[key])
	}
	return result, nil
}
