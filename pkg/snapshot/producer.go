// Package snapshot captures periodic raw skill profiles for online players.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/metrics"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
)

// Profile is a player's current skill state as reported by the live-state
// provider.
type Profile struct {
	PlayerID   string                    `json:"player_id"`
	PlayerName string                    `json:"player_name"`
	Power      int                       `json:"power"`
	Skills     map[progression.Skill]int `json:"skills"`
}

// LiveState supplies the current state of the game world. Implementations
// must be safe to call from a background goroutine.
type LiveState interface {
	// OnlinePlayers enumerates the IDs of currently online players.
	OnlinePlayers(ctx context.Context) ([]string, error)

	// Profile returns one player's current skill profile.
	Profile(ctx context.Context, playerID string) (Profile, error)
}

// ErrAlreadyStarted is returned by Start on a running producer.
var ErrAlreadyStarted = errors.New("snapshot: producer already started")

// Producer appends one raw snapshot row per in-scope player on a fixed
// interval. It owns its timer: Start schedules the first capture one full
// interval out, Stop cancels the timer and lets an in-flight capture finish.
type Producer struct {
	store    storage.Store
	live     LiveState
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool

	// Guards against a slow capture overlapping the next tick.
	capturing sync.Mutex
}

// New creates a stopped producer.
func New(store storage.Store, live LiveState, interval time.Duration, log *logger.Logger) *Producer {
	return &Producer{
		store:    store,
		live:     live,
		interval: interval,
		log:      log.Named("snapshot"),
	}
}

// Start transitions the producer to running. The first capture fires after
// one full interval, not immediately.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(p.stop, p.done)
	p.log.Info("snapshot producer started", "interval", p.interval)
	return nil
}

// Stop cancels the timer and blocks until any in-flight capture finishes.
// Safe to call on a stopped producer.
func (p *Producer) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	p.log.Info("snapshot producer stopped")
}

func (p *Producer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.CaptureAll(context.Background())
		case <-stop:
			return
		}
	}
}

// CaptureAll snapshots every online player once. A failure reading one
// player's profile is logged and skipped; it does not abort the batch.
// Returns the number of rows written. If a previous capture is still in
// flight the tick is skipped entirely.
func (p *Producer) CaptureAll(ctx context.Context) int {
	if !p.capturing.TryLock() {
		p.log.Warn("previous capture still running, skipping tick")
		return 0
	}
	defer p.capturing.Unlock()

	players, err := p.live.OnlinePlayers(ctx)
	if err != nil {
		p.log.Error("failed to enumerate online players", "err", err)
		return 0
	}
	if len(players) == 0 {
		p.log.Debug("no players online")
		return 0
	}

	captured := 0
	now := time.Now()
	for _, playerID := range players {
		profile, err := p.live.Profile(ctx, playerID)
		if err != nil {
			p.log.Warn("profile read failed, skipping player", "player", playerID, "err", err)
			metrics.SnapshotErrors.Inc()
			continue
		}

		snap := progression.Snapshot{
			Timestamp:  now,
			PlayerID:   profile.PlayerID,
			PlayerName: profile.PlayerName,
			Power:      profile.Power,
			Skills:     profile.Skills,
		}
		if err := p.store.InsertSnapshot(ctx, snap); err != nil {
			p.log.Warn("snapshot insert failed, skipping player", "player", playerID, "err", err)
			metrics.SnapshotErrors.Inc()
			continue
		}
		captured++
		metrics.SnapshotsCaptured.Inc()
	}

	p.log.Debug("capture complete", "players", len(players), "captured", captured)
	return captured
}
