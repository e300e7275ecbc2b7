package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
	"github.com/nicktill/skilltrend/pkg/storage/memory"
)

func TestTimeframeTierSelection(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want progression.Tier
	}{
		{Timeframe{Days: 1}, progression.TierRaw},
		{Timeframe{Days: 7}, progression.TierRaw},
		{Timeframe{Days: 8}, progression.TierHourly},
		{Timeframe{Days: 30}, progression.TierHourly},
		{Timeframe{Days: 31}, progression.TierDaily},
		{Timeframe{Days: 180}, progression.TierDaily},
		{Timeframe{Days: 181}, progression.TierWeekly},
		{Timeframe{Days: 365}, progression.TierWeekly},
		{Timeframe{AllTime: true}, progression.TierWeekly},
		// AllTime wins over Days
		{Timeframe{Days: 3, AllTime: true}, progression.TierWeekly},
	}

	for _, tc := range tests {
		if got := tc.tf.tier(); got != tc.want {
			t.Errorf("tier(%+v) = %s, want %s", tc.tf, got, tc.want)
		}
	}
}

func TestGetTrend_SevenDayWindowReadsRaw(t *testing.T) {
	store := memory.New()
	defer store.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	for i, power := range []int{100, 104, 109} {
		store.InsertSnapshot(ctx, progression.Snapshot{
			Timestamp: now.AddDate(0, 0, -6).Add(time.Duration(i) * 12 * time.Hour),
			PlayerID:  "p1",
			Power:     power,
		})
	}
	// Hourly row that must not leak into a raw-tier read
	store.InsertPeriodSummary(ctx, progression.TierHourly, progression.PeriodSummary{
		PeriodKey: progression.HourKey(now.AddDate(0, 0, -3)), PlayerID: "p1", EndPower: 999,
	})

	result := New(store, logger.NewNop()).GetTrend(ctx, "p1", progression.SeriesPower, Timeframe{Days: 7})
	if result.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Reason)
	}
	if len(result.Points) != 3 {
		t.Fatalf("Expected 3 raw points, got %d", len(result.Points))
	}
	for i, want := range []int{100, 104, 109} {
		if result.Points[i].Level != want {
			t.Errorf("Point %d: expected level %d, got %d", i, want, result.Points[i].Level)
		}
	}
}

func TestGetTrend_AllTimeReadsWeekly(t *testing.T) {
	store := memory.New()
	defer store.Close()
	ctx := context.Background()

	// Weekly history reaching far past any computed cutoff
	weeks := []struct {
		ts    time.Time
		power int
	}{
		{time.Now().UTC().AddDate(-1, 0, 0), 300},
		{time.Now().UTC().AddDate(0, -6, 0), 400},
		{time.Now().UTC().AddDate(0, 0, -30), 500},
	}
	for _, w := range weeks {
		store.InsertPeriodSummary(ctx, progression.TierWeekly, progression.PeriodSummary{
			PeriodKey: progression.WeekKey(w.ts), PlayerID: "p1", EndPower: w.power,
		})
	}

	result := New(store, logger.NewNop()).GetTrend(ctx, "p1", progression.SeriesPower, Timeframe{AllTime: true})
	if result.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Reason)
	}
	if len(result.Points) != 3 {
		t.Fatalf("Expected 3 weekly points, got %d", len(result.Points))
	}
	if result.Points[len(result.Points)-1].Level != 500 {
		t.Errorf("Expected newest point at 500, got %d", result.Points[len(result.Points)-1].Level)
	}
}

func TestGetTrend_NoDataIsNotAnError(t *testing.T) {
	store := memory.New()
	defer store.Close()

	result := New(store, logger.NewNop()).GetTrend(context.Background(), "ghost", progression.SeriesPower, Timeframe{Days: 7})
	if result.Status != StatusNoData {
		t.Fatalf("Expected no_data, got %s", result.Status)
	}
	if result.Reason == "" {
		t.Error("Expected a reason on the no_data variant")
	}
	if len(result.Points) != 0 {
		t.Errorf("Expected no points, got %d", len(result.Points))
	}
}

func TestGetTrend_ParameterValidation(t *testing.T) {
	store := memory.New()
	defer store.Close()
	svc := New(store, logger.NewNop())
	ctx := context.Background()

	cases := []struct {
		name   string
		player string
		series progression.Series
		tf     Timeframe
	}{
		{"missing player", "", progression.SeriesPower, Timeframe{Days: 7}},
		{"missing series", "p1", "", Timeframe{Days: 7}},
		{"zero days", "p1", progression.SeriesPower, Timeframe{Days: 0}},
		{"negative days", "p1", progression.SeriesPower, Timeframe{Days: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := svc.GetTrend(ctx, tc.player, tc.series, tc.tf)
			if result.Status != StatusError {
				t.Errorf("Expected error status, got %s", result.Status)
			}
		})
	}
}

// brokenStore fails every read.
type brokenStore struct {
	*memory.Store
}

func (b *brokenStore) QueryTrend(ctx context.Context, tier progression.Tier, playerID string, series progression.Series, since time.Time) ([]progression.TrendPoint, error) {
	return nil, errors.New("disk on fire")
}

func TestGetTrend_StorageFailure(t *testing.T) {
	store := &brokenStore{Store: memory.New()}
	defer store.Close()

	var _ storage.Store = store

	result := New(store, logger.NewNop()).GetTrend(context.Background(), "p1", progression.SeriesPower, Timeframe{Days: 7})
	if result.Status != StatusError {
		t.Fatalf("Expected error status on storage failure, got %s", result.Status)
	}
	if result.Reason == "" {
		t.Error("Expected a reason on the error variant")
	}
}

func TestGetTrend_SkillSeries(t *testing.T) {
	store := memory.New()
	defer store.Close()
	ctx := context.Background()

	store.InsertSnapshot(ctx, progression.Snapshot{
		Timestamp: time.Now().UTC().Add(-time.Hour),
		PlayerID:  "p1",
		Power:     100,
		Skills:    map[progression.Skill]int{"mining": 62},
	})

	result := New(store, logger.NewNop()).GetTrend(ctx, "p1", progression.SeriesFor("mining"), Timeframe{Days: 1})
	if result.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Reason)
	}
	if result.Points[0].Level != 62 {
		t.Errorf("Expected mining level 62, got %d", result.Points[0].Level)
	}
}
