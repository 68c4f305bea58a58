package geo

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Source supplies driver location snapshots for matching passes.
type Source interface {
	Upsert(ctx context.Context, snap models.DriverLocationSnapshot) error
	// Within returns available drivers inside radiusKm of origin.
	Within(ctx context.Context, origin models.Coord, radiusKm float64) ([]models.DriverLocationSnapshot, error)
}

// Index is the in-memory Source: a naive scan over all snapshots.
// Fine at small fleet sizes; swap in RedisIndex when that stops holding.
type Index struct {
	mu    sync.RWMutex
	snaps map[string]models.DriverLocationSnapshot
}

func NewIndex() *Index {
	return &Index{snaps: make(map[string]models.DriverLocationSnapshot)}
}

func (g *Index) Upsert(_ context.Context, snap models.DriverLocationSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	g.snaps[snap.DriverID] = snap
	return nil
}

func (g *Index) Within(_ context.Context, origin models.Coord, radiusKm float64) ([]models.DriverLocationSnapshot, error) {
	g.mu.RLock()
	all := make([]models.DriverLocationSnapshot, 0, len(g.snaps))
	for _, s := range g.snaps {
		all = append(all, s)
	}
	g.mu.RUnlock()
	return Nearby(origin, all, radiusKm), nil
}
