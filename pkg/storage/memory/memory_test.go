package memory

import (
	"context"
	"testing"
	"time"

	"github.com/nicktill/skilltrend/pkg/progression"
)

func snap(ts time.Time, player string, power int, skills map[progression.Skill]int) progression.Snapshot {
	return progression.Snapshot{
		Timestamp:  ts,
		PlayerID:   player,
		PlayerName: player,
		Power:      power,
		Skills:     skills,
	}
}

func TestInsertAndQuerySnapshots(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s := snap(base.Add(time.Duration(i)*10*time.Minute), "p1", 100+i, map[progression.Skill]int{"attack": 40 + i})
		if err := store.InsertSnapshot(ctx, s); err != nil {
			t.Fatalf("InsertSnapshot failed: %v", err)
		}
	}

	points, err := store.QueryTrend(ctx, progression.TierRaw, "p1", progression.SeriesPower, time.Time{})
	if err != nil {
		t.Fatalf("QueryTrend failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(points))
	}
	if points[0].Level != 100 || points[2].Level != 102 {
		t.Errorf("Expected levels 100..102 oldest first, got %d..%d", points[0].Level, points[2].Level)
	}
}

func TestQueryTrend_FiltersByPlayerAndSince(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	store.InsertSnapshot(ctx, snap(base, "p1", 100, nil))
	store.InsertSnapshot(ctx, snap(base.Add(time.Hour), "p1", 105, nil))
	store.InsertSnapshot(ctx, snap(base, "p2", 500, nil))

	points, err := store.QueryTrend(ctx, progression.TierRaw, "p1", progression.SeriesPower, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("QueryTrend failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected 1 point after since filter, got %d", len(points))
	}
	if points[0].Level != 105 {
		t.Errorf("Expected level 105, got %d", points[0].Level)
	}
}

func TestQueryTrend_SkillSeries(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	store.InsertSnapshot(ctx, snap(base, "p1", 100, map[progression.Skill]int{"mining": 30, "attack": 70}))

	points, err := store.QueryTrend(ctx, progression.TierRaw, "p1", progression.SeriesFor("mining"), time.Time{})
	if err != nil {
		t.Fatalf("QueryTrend failed: %v", err)
	}
	if len(points) != 1 || points[0].Level != 30 {
		t.Fatalf("Expected single mining point at 30, got %+v", points)
	}
}

func TestInsertPeriodSummary_UpsertReplaces(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	first := progression.PeriodSummary{PeriodKey: "2026-03-15-14", PlayerID: "p1", StartPower: 100, EndPower: 110}
	second := progression.PeriodSummary{PeriodKey: "2026-03-15-14", PlayerID: "p1", StartPower: 100, EndPower: 125}

	if err := store.InsertPeriodSummary(ctx, progression.TierHourly, first); err != nil {
		t.Fatalf("InsertPeriodSummary failed: %v", err)
	}
	if err := store.InsertPeriodSummary(ctx, progression.TierHourly, second); err != nil {
		t.Fatalf("InsertPeriodSummary failed: %v", err)
	}

	points, err := store.QueryTrend(ctx, progression.TierHourly, "p1", progression.SeriesPower, time.Time{})
	if err != nil {
		t.Fatalf("QueryTrend failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected 1 point after upsert, got %d", len(points))
	}
	if points[0].Level != 125 {
		t.Errorf("Expected replacement row's end power 125, got %d", points[0].Level)
	}
}

func TestInsertPeriodSummary_UnknownTier(t *testing.T) {
	store := New()
	defer store.Close()

	err := store.InsertPeriodSummary(context.Background(), progression.TierRaw,
		progression.PeriodSummary{PeriodKey: "x", PlayerID: "p1"})
	if err == nil {
		t.Error("Expected error for raw tier summary insert, got nil")
	}
}

func TestCompactionCandidates_CutoffIsStrict(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	cutoff := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	store.InsertSnapshot(ctx, snap(cutoff.Add(-time.Minute), "p1", 100, nil))
	store.InsertSnapshot(ctx, snap(cutoff, "p1", 105, nil))
	store.InsertSnapshot(ctx, snap(cutoff.Add(time.Hour), "p1", 110, nil))

	groups, err := store.CompactionCandidates(ctx, progression.TierRaw, cutoff)
	if err != nil {
		t.Fatalf("CompactionCandidates failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if groups[0].MaxPower != 100 {
		t.Errorf("Rows at or after the cutoff leaked in: max power %d", groups[0].MaxPower)
	}
}

func TestCompactionCandidates_HourlySource(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	// Two hourly rows of the same day, old enough to promote
	store.InsertPeriodSummary(ctx, progression.TierHourly, progression.PeriodSummary{
		PeriodKey: "2026-03-01-10", PlayerID: "p1", StartPower: 100, EndPower: 110,
		Skills: map[progression.Skill]progression.SkillDelta{"attack": {Start: 40, End: 44, Gain: 4}},
	})
	store.InsertPeriodSummary(ctx, progression.TierHourly, progression.PeriodSummary{
		PeriodKey: "2026-03-01-11", PlayerID: "p1", StartPower: 110, EndPower: 125,
		Skills: map[progression.Skill]progression.SkillDelta{"attack": {Start: 44, End: 50, Gain: 6}},
	})

	groups, err := store.CompactionCandidates(ctx, progression.TierHourly,
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CompactionCandidates failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("Expected 1 daily group, got %d", len(groups))
	}

	sum := groups[0].Summary()
	if sum.PeriodKey != "2026-03-01" {
		t.Errorf("Expected daily key 2026-03-01, got %q", sum.PeriodKey)
	}
	if sum.StartPower != 100 || sum.EndPower != 125 {
		t.Errorf("Expected power endpoints 100/125, got %d/%d", sum.StartPower, sum.EndPower)
	}
	if d := sum.Skills["attack"]; d.Start != 40 || d.End != 50 || d.Gain != 10 {
		t.Errorf("Expected attack delta {40 50 10}, got %+v", d)
	}
}

func TestDeleteSourceRowsOlderThan(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	cutoff := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	store.InsertSnapshot(ctx, snap(cutoff.Add(-time.Hour), "p1", 100, nil))
	store.InsertSnapshot(ctx, snap(cutoff.Add(time.Hour), "p1", 105, nil))

	removed, err := store.DeleteSourceRowsOlderThan(ctx, progression.TierRaw, cutoff)
	if err != nil {
		t.Fatalf("DeleteSourceRowsOlderThan failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 row removed, got %d", removed)
	}

	points, _ := store.QueryTrend(ctx, progression.TierRaw, "p1", progression.SeriesPower, time.Time{})
	if len(points) != 1 || points[0].Level != 105 {
		t.Errorf("Expected only the newer snapshot to survive, got %+v", points)
	}
}

func TestDeleteSummariesOlderThan(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	store.InsertPeriodSummary(ctx, progression.TierWeekly, progression.PeriodSummary{PeriodKey: "2024-W10", PlayerID: "p1"})
	store.InsertPeriodSummary(ctx, progression.TierWeekly, progression.PeriodSummary{PeriodKey: "2026-W10", PlayerID: "p1"})

	removed, err := store.DeleteSourceRowsOlderThan(ctx, progression.TierWeekly,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeleteSourceRowsOlderThan failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 weekly row removed, got %d", removed)
	}
}

func TestLevelUpEvents(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := progression.LevelUpEvent{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			PlayerID:  "p1",
			Skill:     "attack",
			OldLevel:  40 + i,
			NewLevel:  41 + i,
		}
		if err := store.InsertLevelUpEvent(ctx, ev); err != nil {
			t.Fatalf("InsertLevelUpEvent failed: %v", err)
		}
	}

	removed, err := store.DeleteLevelUpEventsOlderThan(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("DeleteLevelUpEventsOlderThan failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 event pruned, got %d", removed)
	}

	stats, _ := store.Stats(ctx)
	if stats.LevelUpEvents != 2 {
		t.Errorf("Expected 2 surviving events, got %d", stats.LevelUpEvents)
	}
}

func TestStats(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	store.InsertSnapshot(ctx, snap(base, "p1", 100, nil))
	store.InsertSnapshot(ctx, snap(base.Add(time.Hour), "p2", 200, nil))
	store.InsertPeriodSummary(ctx, progression.TierHourly, progression.PeriodSummary{PeriodKey: "2026-03-15-13", PlayerID: "p3"})
	store.InsertLevelUpEvent(ctx, progression.LevelUpEvent{Timestamp: base, PlayerID: "p1", Skill: "attack", OldLevel: 1, NewLevel: 2})

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Snapshots != 2 || stats.HourlySummaries != 1 || stats.LevelUpEvents != 1 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.Players != 3 {
		t.Errorf("Expected 3 unique players, got %d", stats.Players)
	}
	if !stats.OldestSnapshot.Equal(base) || !stats.NewestSnapshot.Equal(base.Add(time.Hour)) {
		t.Errorf("Unexpected snapshot time range: %v .. %v", stats.OldestSnapshot, stats.NewestSnapshot)
	}
}
