package storage

import (
	"context"

	"github.com/example/ride-dispatch/internal/models"
)

// RideStore is the durable home of ride records. Status changes go
// through UpdateFrom, a conditional write keyed on the previous status,
// so concurrent transitions on one ride resolve to a single winner.
type RideStore interface {
	Create(ctx context.Context, r *models.Ride) error
	Get(ctx context.Context, id string) (*models.Ride, error)
	ListForRider(ctx context.Context, riderID string, status models.RideStatus) ([]*models.Ride, error)
	ListForDriver(ctx context.Context, driverID string, status models.RideStatus) ([]*models.Ride, error)
	ListUnassignedPending(ctx context.Context) ([]*models.Ride, error)
	// ActiveForDriver returns the driver's accepted and in-progress rides.
	ActiveForDriver(ctx context.Context, driverID string) ([]*models.Ride, error)
	// UpdateFrom persists r only if the stored status still equals prev.
	// A conflict fails with ride.ErrInvalidTransition.
	UpdateFrom(ctx context.Context, r *models.Ride, prev models.RideStatus) error
	// SetRating persists a rating only if none was recorded yet.
	SetRating(ctx context.Context, rideID string, rating int, feedback string) error
	// RatingsForDriver returns every recorded rating for the driver's rides.
	RatingsForDriver(ctx context.Context, driverID string) ([]int, error)
}

// DriverStore holds per-driver aggregates and the last known location.
// Method names avoid clashing with RideStore so one backend can satisfy
// both interfaces.
type DriverStore interface {
	GetDriver(ctx context.Context, userID string) (*models.DriverProfile, error)
	UpsertLocation(ctx context.Context, userID string, lat, lng float64) error
	SetAvailability(ctx context.Context, userID string, available bool) error
	IncrementTotalRides(ctx context.Context, userID string) error
	SetDriverRating(ctx context.Context, userID string, rating float64) error
}
