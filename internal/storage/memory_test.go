package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/ride"
)

func pendingRide(id string) *models.Ride {
	return &models.Ride{
		ID:        id,
		RiderID:   "rider-1",
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestUpdateFromConditional(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.Create(ctx, pendingRide("r1")); err != nil {
		t.Fatal(err)
	}

	r, _ := m.Get(ctx, "r1")
	r.Status = models.StatusAccepted
	r.DriverID = "driver-1"
	if err := m.UpdateFrom(ctx, r, models.StatusPending); err != nil {
		t.Fatal(err)
	}

	// a second writer still holding the pending snapshot loses
	stale, _ := m.Get(ctx, "r1")
	stale.Status = models.StatusAccepted
	stale.DriverID = "driver-2"
	err := m.UpdateFrom(ctx, stale, models.StatusPending)
	if !errors.Is(err, ride.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := m.Get(ctx, "r1")
	if got.DriverID != "driver-1" {
		t.Fatalf("loser overwrote the winner: %q", got.DriverID)
	}
}

func TestUpdateFromUnknownRide(t *testing.T) {
	m := NewMemoryStore()
	err := m.UpdateFrom(context.Background(), pendingRide("ghost"), models.StatusPending)
	if !errors.Is(err, ride.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetRatingOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	r := pendingRide("r1")
	r.DriverID = "driver-1"
	r.Status = models.StatusCompleted
	_ = m.Create(ctx, r)

	if err := m.SetRating(ctx, "r1", 5, "great"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetRating(ctx, "r1", 3, ""); !errors.Is(err, ride.ErrInvalidTransition) {
		t.Fatalf("second rating should conflict, got %v", err)
	}
	ratings, _ := m.RatingsForDriver(ctx, "driver-1")
	if len(ratings) != 1 || ratings[0] != 5 {
		t.Fatalf("ratings = %v", ratings)
	}
}

func TestListUnassignedPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Create(ctx, pendingRide("r1"))
	assigned := pendingRide("r2")
	assigned.DriverID = "driver-1"
	assigned.Status = models.StatusAccepted
	_ = m.Create(ctx, assigned)

	got, _ := m.ListUnassignedPending(ctx)
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("got %v", got)
	}
}

func TestDriverProfileAggregates(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.GetDriver(ctx, "driver-1"); !errors.Is(err, ride.ErrNotFound) {
		t.Fatalf("unknown driver: %v", err)
	}

	_ = m.UpsertLocation(ctx, "driver-1", 12.97, 77.59)
	_ = m.IncrementTotalRides(ctx, "driver-1")
	_ = m.SetDriverRating(ctx, "driver-1", 4.5)

	p, err := m.GetDriver(ctx, "driver-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalRides != 1 || p.Rating != 4.5 || p.CurrentLat == nil || *p.CurrentLat != 12.97 {
		t.Fatalf("profile = %+v", p)
	}
	if !p.IsAvailable {
		t.Fatalf("new profiles default to available")
	}
}
