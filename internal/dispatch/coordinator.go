// Package dispatch orchestrates the core: it validates transitions with
// the ride state machine, persists them, and hands events to the
// notification hub. Notification delivery is detached from the request
// path; a ride update succeeds even when nothing is deliverable.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/ride"
	"github.com/example/ride-dispatch/internal/storage"
)

// Notifier is the hub surface the coordinator needs.
type Notifier interface {
	SendTo(userID string, event interface{})
	Broadcast(event interface{})
}

// LocationPublisher mirrors driver snapshots to the ingest pipeline.
// Optional; a nil publisher disables it.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, snap models.DriverLocationSnapshot) error
}

type Coordinator struct {
	Rides     storage.RideStore
	Drivers   storage.DriverStore
	Locations geo.Source
	Hub       Notifier
	Publisher LocationPublisher
	Logger    *slog.Logger
	RadiusKm  float64

	// wg tracks detached notification tasks so shutdown (and tests)
	// can wait for them.
	wg sync.WaitGroup
}

func New(rides storage.RideStore, drivers storage.DriverStore, locations geo.Source, hub Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		Rides:     rides,
		Drivers:   drivers,
		Locations: locations,
		Hub:       hub,
		Logger:    logger,
		RadiusKm:  geo.DefaultRadiusKm,
	}
}

// Wait blocks until all in-flight notification tasks finish.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// CreateRide persists a new pending ride and kicks off driver fan-out.
// The response does not wait for any notification.
func (c *Coordinator) CreateRide(ctx context.Context, actor models.Principal, in ride.CreateInput) (*models.Ride, error) {
	r, err := ride.New(uuid.NewString(), actor, in, time.Now())
	if err != nil {
		return nil, err
	}
	if err := c.Rides.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("persist ride: %w", err)
	}
	observability.RidesCreated.Inc()

	snapshot := *r
	c.async(func() { c.fanout(&snapshot, "", true) })
	return r, nil
}

// fanout notifies every available driver near the pickup, excluding
// excludeDriver. With fallback set (ride creation only), an empty match
// degrades to a broadcast to everyone connected rather than silently
// dropping the request.
func (c *Coordinator) fanout(r *models.Ride, excludeDriver string, fallback bool) {
	timer := prometheus.NewTimer(observability.DispatchFanout)
	defer timer.ObserveDuration()

	event := models.NewRideRequest(r)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snaps, err := c.Locations.Within(ctx, r.Pickup(), c.RadiusKm)
	if err != nil {
		c.Logger.Error("location lookup failed, broadcasting instead", "ride_id", r.ID, "error", err)
		snaps = nil
	}
	notified := 0
	for _, d := range snaps {
		if d.DriverID == excludeDriver {
			continue
		}
		c.Hub.SendTo(d.DriverID, event)
		notified++
	}
	if notified == 0 && fallback {
		observability.DispatchBroadcast.Inc()
		c.Logger.Info("no nearby drivers, broadcasting ride request", "ride_id", r.ID)
		c.Hub.Broadcast(event)
	}
}

// UpdateStatus applies one lifecycle transition and notifies the
// counterpart. The write is conditional on the status the transition
// was computed from, so a concurrent writer fails with
// ErrInvalidTransition instead of clobbering.
func (c *Coordinator) UpdateStatus(ctx context.Context, actor models.Principal, rideID string, target models.RideStatus, finalFare *float64) (*models.Ride, error) {
	r, err := c.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	prev := r.Status
	if err := ride.Transition(r, target, actor, finalFare, time.Now()); err != nil {
		return nil, err
	}
	if err := c.Rides.UpdateFrom(ctx, r, prev); err != nil {
		return nil, err
	}
	observability.RideTransitions.WithLabelValues(string(r.Status)).Inc()

	if r.Status == models.StatusCompleted && r.DriverID != "" {
		if err := c.Drivers.IncrementTotalRides(ctx, r.DriverID); err != nil {
			c.Logger.Error("driver stats update failed", "driver_id", r.DriverID, "error", err)
		}
	}

	snapshot := *r
	rejector := ""
	if target == models.StatusPending {
		rejector = actor.UserID
	}
	c.async(func() { c.notifyTransition(&snapshot, actor, rejector) })
	return r, nil
}

// CancelRide is the rider's convenience path for Update(cancelled).
func (c *Coordinator) CancelRide(ctx context.Context, actor models.Principal, rideID string) error {
	_, err := c.UpdateStatus(ctx, actor, rideID, models.StatusCancelled, nil)
	return err
}

// notifyTransition sends ride_status_update to the counterpart: the
// rider for driver-initiated transitions and vice versa. A reject also
// re-runs the fan-out without the rejecting driver, and with no
// broadcast fallback.
func (c *Coordinator) notifyTransition(r *models.Ride, actor models.Principal, rejector string) {
	event := models.NewRideStatus(r)
	if actor.Role == models.RoleDriver {
		c.Hub.SendTo(r.RiderID, event)
	} else if r.DriverID != "" {
		c.Hub.SendTo(r.DriverID, event)
	}
	if rejector != "" {
		c.fanout(r, rejector, false)
	}
}

// RateRide records the rider's rating and recomputes the driver's
// aggregate as the mean over all their rated rides. The recompute runs
// on every rating so the aggregate cannot drift.
func (c *Coordinator) RateRide(ctx context.Context, actor models.Principal, rideID string, rating int, feedback string) (*models.Ride, error) {
	r, err := c.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := ride.Rate(r, actor, rating, feedback); err != nil {
		return nil, err
	}
	if err := c.Rides.SetRating(ctx, rideID, rating, feedback); err != nil {
		return nil, err
	}

	if r.DriverID != "" {
		ratings, err := c.Rides.RatingsForDriver(ctx, r.DriverID)
		if err != nil {
			c.Logger.Error("rating recompute failed", "driver_id", r.DriverID, "error", err)
			return r, nil
		}
		if len(ratings) > 0 {
			sum := 0
			for _, v := range ratings {
				sum += v
			}
			mean := float64(sum) / float64(len(ratings))
			mean = math.Round(mean*100) / 100
			if err := c.Drivers.SetDriverRating(ctx, r.DriverID, mean); err != nil {
				c.Logger.Error("driver rating update failed", "driver_id", r.DriverID, "error", err)
			}
		}
	}
	return r, nil
}

// GetRide enforces ownership: riders see their own rides, drivers see
// rides assigned to them plus any still-pending request.
func (c *Coordinator) GetRide(ctx context.Context, actor models.Principal, rideID string) (*models.Ride, error) {
	r, err := c.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleRider:
		if r.RiderID != actor.UserID {
			return nil, fmt.Errorf("%w: not your ride", ride.ErrForbidden)
		}
	case models.RoleDriver:
		if r.DriverID != actor.UserID && r.Status != models.StatusPending {
			return nil, fmt.Errorf("%w: not your ride", ride.ErrForbidden)
		}
	}
	return r, nil
}

// ListRides returns the caller's rides. Drivers additionally see every
// pending unassigned request.
func (c *Coordinator) ListRides(ctx context.Context, actor models.Principal, status models.RideStatus) ([]*models.Ride, error) {
	switch actor.Role {
	case models.RoleDriver:
		assigned, err := c.Rides.ListForDriver(ctx, actor.UserID, status)
		if err != nil {
			return nil, err
		}
		if status != "" && status != models.StatusPending {
			return assigned, nil
		}
		pending, err := c.Rides.ListUnassignedPending(ctx)
		if err != nil {
			return nil, err
		}
		return append(assigned, pending...), nil
	default:
		return c.Rides.ListForRider(ctx, actor.UserID, status)
	}
}

// AvailableRides lists pending unassigned rides within the dispatch
// radius of the driver's last known location. A driver who is off duty
// or has no location gets an empty result, not an error.
func (c *Coordinator) AvailableRides(ctx context.Context, actor models.Principal) ([]*models.Ride, error) {
	if actor.Role != models.RoleDriver {
		return nil, fmt.Errorf("%w: only drivers view available rides", ride.ErrForbidden)
	}
	profile, err := c.Drivers.GetDriver(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, ride.ErrNotFound) {
			return []*models.Ride{}, nil
		}
		return nil, err
	}
	if !profile.IsAvailable || profile.CurrentLat == nil || profile.CurrentLng == nil {
		return []*models.Ride{}, nil
	}
	loc := models.Coord{Lat: *profile.CurrentLat, Lng: *profile.CurrentLng}

	pending, err := c.Rides.ListUnassignedPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Ride, 0, len(pending))
	for _, r := range pending {
		if geo.Haversine(r.Pickup(), loc) <= c.RadiusKm {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateDriverLocation persists the new snapshot, refreshes the geo
// index, mirrors it to the ingest pipeline, and pushes
// driver_location_update to riders of the driver's active rides.
func (c *Coordinator) UpdateDriverLocation(ctx context.Context, actor models.Principal, lat, lng float64) error {
	if actor.Role != models.RoleDriver {
		return fmt.Errorf("%w: only drivers update their location", ride.ErrForbidden)
	}
	loc := models.Coord{Lat: lat, Lng: lng}
	if !geo.ValidCoord(loc) {
		return fmt.Errorf("%w: coordinates out of range", ride.ErrValidation)
	}
	if err := c.Drivers.UpsertLocation(ctx, actor.UserID, lat, lng); err != nil {
		return fmt.Errorf("persist location: %w", err)
	}
	available := true
	if profile, err := c.Drivers.GetDriver(ctx, actor.UserID); err == nil {
		available = profile.IsAvailable
	}
	snap := models.DriverLocationSnapshot{
		DriverID:    actor.UserID,
		Lat:         lat,
		Lng:         lng,
		IsAvailable: available,
		UpdatedAt:   time.Now(),
	}
	if err := c.Locations.Upsert(ctx, snap); err != nil {
		c.Logger.Error("geo index update failed", "driver_id", actor.UserID, "error", err)
	}
	if c.Publisher != nil {
		if err := c.Publisher.PublishLocation(ctx, snap); err != nil {
			c.Logger.Error("location publish failed", "driver_id", actor.UserID, "error", err)
		}
	}

	active, err := c.Rides.ActiveForDriver(ctx, actor.UserID)
	if err != nil {
		c.Logger.Error("active ride lookup failed", "driver_id", actor.UserID, "error", err)
		return nil
	}
	c.async(func() {
		for _, r := range active {
			c.Hub.SendTo(r.RiderID, models.DriverLocationEvent{
				Type:   models.EventDriverLocationUpdate,
				RideID: r.ID,
				Lat:    lat,
				Lng:    lng,
			})
		}
	})
	return nil
}

// SetAvailability flips the driver's duty flag and keeps the geo index
// in line so an off-duty driver stops matching immediately.
func (c *Coordinator) SetAvailability(ctx context.Context, actor models.Principal, available bool) error {
	if actor.Role != models.RoleDriver {
		return fmt.Errorf("%w: only drivers set availability", ride.ErrForbidden)
	}
	if err := c.Drivers.SetAvailability(ctx, actor.UserID, available); err != nil {
		return fmt.Errorf("persist availability: %w", err)
	}
	if profile, err := c.Drivers.GetDriver(ctx, actor.UserID); err == nil &&
		profile.CurrentLat != nil && profile.CurrentLng != nil {
		snap := models.DriverLocationSnapshot{
			DriverID:    actor.UserID,
			Lat:         *profile.CurrentLat,
			Lng:         *profile.CurrentLng,
			IsAvailable: available,
			UpdatedAt:   time.Now(),
		}
		if err := c.Locations.Upsert(ctx, snap); err != nil {
			c.Logger.Error("geo index update failed", "driver_id", actor.UserID, "error", err)
		}
	}
	return nil
}
