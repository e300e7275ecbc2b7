package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
)

// Store keeps all record families in memory. Data is lost on restart.
// Useful for testing and development.
type Store struct {
	mu        sync.RWMutex
	snapshots []progression.Snapshot
	summaries map[progression.Tier]map[string]progression.PeriodSummary
	events    []progression.LevelUpEvent
}

// New creates an in-memory storage backend
func New() *Store {
	return &Store{
		summaries: map[progression.Tier]map[string]progression.PeriodSummary{
			progression.TierHourly: {},
			progression.TierDaily:  {},
			progression.TierWeekly: {},
		},
	}
}

// InsertSnapshot appends a raw snapshot row
func (s *Store) InsertSnapshot(ctx context.Context, snap progression.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, snap)
	return nil
}

// InsertPeriodSummary upserts a summary row, replacing any prior row for
// the same (tier, periodKey, playerID)
func (s *Store) InsertPeriodSummary(ctx context.Context, tier progression.Tier, sum progression.PeriodSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	family, ok := s.summaries[tier]
	if !ok {
		return storage.ErrUnknownTier
	}
	family[sum.PeriodKey+"\x00"+sum.PlayerID] = sum
	return nil
}

// CompactionCandidates returns per (bucket, player) aggregate inputs over
// rows strictly older than the cutoff
func (s *Store) CompactionCandidates(ctx context.Context, source progression.Tier, olderThan time.Time) ([]storage.CandidateGroup, error) {
	target, ok := progression.NextTier(source)
	if !ok {
		return nil, storage.ErrUnknownTier
	}

	s.mu.RLock()
	rows := s.sourceRows(source, olderThan)
	s.mu.RUnlock()

	return storage.GroupCandidates(target, rows)
}

// sourceRows flattens a tier's rows older than the cutoff. Summary rows
// with an unparseable period key are skipped; the compaction pipeline
// reports stage-level counts, not per-row decode noise.
func (s *Store) sourceRows(source progression.Tier, olderThan time.Time) []storage.SourceRow {
	var rows []storage.SourceRow

	if source == progression.TierRaw {
		for _, snap := range s.snapshots {
			if !snap.Timestamp.Before(olderThan) {
				continue
			}
			rows = append(rows, storage.SourceRow{
				Time:        snap.Timestamp,
				PlayerID:    snap.PlayerID,
				PlayerName:  snap.PlayerName,
				MinPower:    snap.Power,
				MaxPower:    snap.Power,
				FirstSkills: snap.Skills,
				LastSkills:  snap.Skills,
			})
		}
		return rows
	}

	for _, sum := range s.summaries[source] {
		bucketTime, err := progression.BucketTime(source, sum.PeriodKey)
		if err != nil || !bucketTime.Before(olderThan) {
			continue
		}
		starts := make(map[progression.Skill]int, len(sum.Skills))
		ends := make(map[progression.Skill]int, len(sum.Skills))
		for skill, delta := range sum.Skills {
			starts[skill] = delta.Start
			ends[skill] = delta.End
		}
		rows = append(rows, storage.SourceRow{
			Time:        bucketTime,
			PlayerID:    sum.PlayerID,
			PlayerName:  sum.PlayerName,
			MinPower:    sum.StartPower,
			MaxPower:    sum.EndPower,
			FirstSkills: starts,
			LastSkills:  ends,
		})
	}
	return rows
}

// DeleteSourceRowsOlderThan removes a tier's rows strictly older than the cutoff
func (s *Store) DeleteSourceRowsOlderThan(ctx context.Context, tier progression.Tier, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tier == progression.TierRaw {
		kept := s.snapshots[:0]
		removed := 0
		for _, snap := range s.snapshots {
			if snap.Timestamp.Before(olderThan) {
				removed++
				continue
			}
			kept = append(kept, snap)
		}
		s.snapshots = kept
		return removed, nil
	}

	family, ok := s.summaries[tier]
	if !ok {
		return 0, storage.ErrUnknownTier
	}
	removed := 0
	for key, sum := range family {
		bucketTime, err := progression.BucketTime(tier, sum.PeriodKey)
		if err != nil {
			continue
		}
		if bucketTime.Before(olderThan) {
			delete(family, key)
			removed++
		}
	}
	return removed, nil
}

// InsertLevelUpEvent appends one level-up event
func (s *Store) InsertLevelUpEvent(ctx context.Context, ev progression.LevelUpEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
	return nil
}

// DeleteLevelUpEventsOlderThan prunes events strictly older than the cutoff
func (s *Store) DeleteLevelUpEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	removed := 0
	for _, ev := range s.events {
		if ev.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return removed, nil
}

// QueryTrend returns one player's trend points from one tier, oldest first
func (s *Store) QueryTrend(ctx context.Context, tier progression.Tier, playerID string, series progression.Series, since time.Time) ([]progression.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []progression.TrendPoint

	if tier == progression.TierRaw {
		for _, snap := range s.snapshots {
			if snap.PlayerID != playerID {
				continue
			}
			if !since.IsZero() && snap.Timestamp.Before(since) {
				continue
			}
			points = append(points, progression.TrendPoint{
				Timestamp: snap.Timestamp,
				Level:     snap.Level(series),
			})
		}
		sort.Slice(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})
		return points, nil
	}

	family, ok := s.summaries[tier]
	if !ok {
		return nil, storage.ErrUnknownTier
	}
	for _, sum := range family {
		if sum.PlayerID != playerID {
			continue
		}
		bucketTime, err := progression.BucketTime(tier, sum.PeriodKey)
		if err != nil {
			continue
		}
		if !since.IsZero() && bucketTime.Before(since) {
			continue
		}
		points = append(points, progression.TrendPoint{
			Timestamp: bucketTime,
			Level:     sum.EndLevel(series),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		Snapshots:       uint64(len(s.snapshots)),
		HourlySummaries: uint64(len(s.summaries[progression.TierHourly])),
		DailySummaries:  uint64(len(s.summaries[progression.TierDaily])),
		WeeklySummaries: uint64(len(s.summaries[progression.TierWeekly])),
		LevelUpEvents:   uint64(len(s.events)),
	}

	players := make(map[string]bool)
	for _, snap := range s.snapshots {
		players[snap.PlayerID] = true
		if stats.OldestSnapshot.IsZero() || snap.Timestamp.Before(stats.OldestSnapshot) {
			stats.OldestSnapshot = snap.Timestamp
		}
		if snap.Timestamp.After(stats.NewestSnapshot) {
			stats.NewestSnapshot = snap.Timestamp
		}
	}
	for _, family := range s.summaries {
		for _, sum := range family {
			players[sum.PlayerID] = true
		}
	}
	for _, ev := range s.events {
		players[ev.PlayerID] = true
	}
	stats.Players = uint64(len(players))

	// Rough size estimate (each row ~150 bytes)
	rows := stats.Snapshots + stats.HourlySummaries + stats.DailySummaries +
		stats.WeeklySummaries + stats.LevelUpEvents
	stats.SizeBytes = rows * 150

	return stats, nil
}

// Close is a no-op for memory storage
func (s *Store) Close() error {
	return nil
}
