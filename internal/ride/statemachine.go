// Package ride owns the authoritative ride lifecycle. All mutations of
// a Ride go through the transition functions here; callers persist the
// result with a conditional update keyed on the previous status.
package ride

import (
	"fmt"
	"math"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/pricing"
)

// avgSpeedKmh backs the duration estimate at creation time.
const avgSpeedKmh = 40.0

// CreateInput is a validated ride request from a rider.
type CreateInput struct {
	PickupAddress      string               `json:"pickup_address"`
	PickupLat          float64              `json:"pickup_lat"`
	PickupLng          float64              `json:"pickup_lng"`
	DestinationAddress string               `json:"destination_address"`
	DestinationLat     float64              `json:"destination_lat"`
	DestinationLng     float64              `json:"destination_lng"`
	VehicleClass       models.VehicleClass  `json:"vehicle_class"`
	ScheduledTime      *time.Time           `json:"scheduled_time,omitempty"`
}

// New builds a pending ride with distance, duration and estimated fare
// derived up front. No driver is assigned.
func New(id string, rider models.Principal, in CreateInput, now time.Time) (*models.Ride, error) {
	if rider.Role != models.RoleRider {
		return nil, fmt.Errorf("%w: only riders create ride requests", ErrForbidden)
	}
	pickup := models.Coord{Lat: in.PickupLat, Lng: in.PickupLng}
	dest := models.Coord{Lat: in.DestinationLat, Lng: in.DestinationLng}
	if !geo.ValidCoord(pickup) || !geo.ValidCoord(dest) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	if in.PickupAddress == "" || in.DestinationAddress == "" {
		return nil, fmt.Errorf("%w: pickup and destination addresses required", ErrValidation)
	}
	class := in.VehicleClass
	if class == "" {
		class = models.ClassEconomy
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle class %q", ErrValidation, in.VehicleClass)
	}

	dist := geo.Haversine(pickup, dest)
	return &models.Ride{
		ID:                 id,
		RiderID:            rider.UserID,
		PickupAddress:      in.PickupAddress,
		PickupLat:          in.PickupLat,
		PickupLng:          in.PickupLng,
		DestinationAddress: in.DestinationAddress,
		DestinationLat:     in.DestinationLat,
		DestinationLng:     in.DestinationLng,
		Status:             models.StatusPending,
		VehicleClass:       class,
		DistanceKm:         dist,
		DurationMinutes:    int(math.Round(dist / avgSpeedKmh * 60)),
		EstimatedFare:      pricing.Fare(dist, class),
		ScheduledTime:      in.ScheduledTime,
		CreatedAt:          now,
	}, nil
}

// Accept assigns the acting driver to a pending ride.
func Accept(r *models.Ride, actor models.Principal) error {
	if actor.Role != models.RoleDriver {
		return fmt.Errorf("%w: only drivers accept rides", ErrForbidden)
	}
	if r.Status != models.StatusPending {
		return fmt.Errorf("%w: ride is %s, not pending", ErrInvalidTransition, r.Status)
	}
	r.DriverID = actor.UserID
	r.Status = models.StatusAccepted
	return nil
}

// Start moves an accepted ride to in_progress. Only the assigned driver
// may start it.
func Start(r *models.Ride, actor models.Principal, now time.Time) error {
	if err := assignedDriver(r, actor); err != nil {
		return err
	}
	if r.Status != models.StatusAccepted {
		return fmt.Errorf("%w: ride is %s, not accepted", ErrInvalidTransition, r.Status)
	}
	r.Status = models.StatusInProgress
	r.StartedAt = &now
	return nil
}

// Complete finishes an in-progress ride. The final fare defaults to the
// estimate when the driver does not report one.
func Complete(r *models.Ride, actor models.Principal, finalFare *float64, now time.Time) error {
	if err := assignedDriver(r, actor); err != nil {
		return err
	}
	if r.Status != models.StatusInProgress {
		return fmt.Errorf("%w: ride is %s, not in_progress", ErrInvalidTransition, r.Status)
	}
	r.Status = models.StatusCompleted
	r.CompletedAt = &now
	if finalFare != nil {
		r.FinalFare = finalFare
	} else {
		fare := r.EstimatedFare
		r.FinalFare = &fare
	}
	return nil
}

// Cancel is the rider's exit. A ride already in progress may only
// complete, so cancel is legal from pending or accepted only.
func Cancel(r *models.Ride, actor models.Principal) error {
	if actor.UserID != r.RiderID {
		return fmt.Errorf("%w: only the rider cancels their ride", ErrForbidden)
	}
	if r.Status != models.StatusPending && r.Status != models.StatusAccepted {
		return fmt.Errorf("%w: ride is %s and cannot be cancelled", ErrInvalidTransition, r.Status)
	}
	r.Status = models.StatusCancelled
	return nil
}

// Reject re-opens an accepted ride: the assigned driver backs out and
// the ride returns to pending with no driver. The coordinator then
// re-broadcasts to nearby drivers excluding the rejector.
func Reject(r *models.Ride, actor models.Principal) error {
	if err := assignedDriver(r, actor); err != nil {
		return err
	}
	if r.Status != models.StatusAccepted {
		return fmt.Errorf("%w: ride is %s, not accepted", ErrInvalidTransition, r.Status)
	}
	r.DriverID = ""
	r.Status = models.StatusPending
	return nil
}

// Rate records the rider's rating on a completed ride. Set-once.
func Rate(r *models.Ride, actor models.Principal, rating int, feedback string) error {
	if actor.UserID != r.RiderID {
		return fmt.Errorf("%w: only the rider rates their ride", ErrForbidden)
	}
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if r.Status != models.StatusCompleted {
		return fmt.Errorf("%w: only completed rides can be rated", ErrInvalidTransition)
	}
	if r.Rating != nil {
		return fmt.Errorf("%w: ride already rated", ErrInvalidTransition)
	}
	r.Rating = &rating
	r.Feedback = feedback
	return nil
}

// Transition applies the lifecycle edge implied by a target status.
// pending as a target is the driver-initiated reject.
func Transition(r *models.Ride, target models.RideStatus, actor models.Principal, finalFare *float64, now time.Time) error {
	switch target {
	case models.StatusAccepted:
		return Accept(r, actor)
	case models.StatusInProgress:
		return Start(r, actor, now)
	case models.StatusCompleted:
		return Complete(r, actor, finalFare, now)
	case models.StatusCancelled:
		return Cancel(r, actor)
	case models.StatusPending:
		return Reject(r, actor)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}
}

func assignedDriver(r *models.Ride, actor models.Principal) error {
	if r.DriverID == "" || actor.UserID != r.DriverID {
		return fmt.Errorf("%w: only the assigned driver may do this", ErrForbidden)
	}
	return nil
}
