// Package live holds the in-process view of the game world: which players
// are online and their current skill profiles, pushed over HTTP by the
// game-side integration.
package live

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nicktill/skilltrend/pkg/metrics"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/snapshot"
)

// Registry implements snapshot.LiveState over pushed profile updates.
// Upserting a profile marks the player online; removal marks them offline.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]snapshot.Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]snapshot.Profile)}
}

// Upsert stores a player's current profile and marks them online. Power is
// recomputed from the skill levels so pushed payloads cannot desync the two.
func (r *Registry) Upsert(profile snapshot.Profile) error {
	if profile.PlayerID == "" {
		return fmt.Errorf("live: profile missing player id")
	}
	profile.Power = progression.PowerOf(profile.Skills)

	r.mu.Lock()
	r.profiles[profile.PlayerID] = profile
	count := len(r.profiles)
	r.mu.Unlock()

	metrics.OnlinePlayers.Set(float64(count))
	return nil
}

// Remove marks a player offline. Removing an unknown player is a no-op.
func (r *Registry) Remove(playerID string) {
	r.mu.Lock()
	delete(r.profiles, playerID)
	count := len(r.profiles)
	r.mu.Unlock()

	metrics.OnlinePlayers.Set(float64(count))
}

// OnlinePlayers returns the IDs of players currently online, sorted for
// deterministic capture order.
func (r *Registry) OnlinePlayers(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Profile returns one online player's current profile.
func (r *Registry) Profile(ctx context.Context, playerID string) (snapshot.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[playerID]
	if !ok {
		return snapshot.Profile{}, fmt.Errorf("live: player %q not online", playerID)
	}
	return profile, nil
}
