package models

import "time"

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

type RideStatus string

const (
	StatusPending    RideStatus = "pending"
	StatusAccepted   RideStatus = "accepted"
	StatusInProgress RideStatus = "in_progress"
	StatusCompleted  RideStatus = "completed"
	StatusCancelled  RideStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type VehicleClass string

const (
	ClassEconomy VehicleClass = "economy"
	ClassPremium VehicleClass = "premium"
	ClassSUV     VehicleClass = "suv"
	ClassLuxury  VehicleClass = "luxury"
)

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassEconomy, ClassPremium, ClassSUV, ClassLuxury:
		return true
	}
	return false
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Principal is the authenticated caller as established by the identity
// collaborator. The core trusts it without re-validating credentials.
type Principal struct {
	UserID string
	Name   string
	Role   Role
}

type Ride struct {
	ID                 string       `json:"id"`
	RiderID            string       `json:"rider_id"`
	DriverID           string       `json:"driver_id,omitempty"`
	PickupAddress      string       `json:"pickup_address"`
	PickupLat          float64      `json:"pickup_lat"`
	PickupLng          float64      `json:"pickup_lng"`
	DestinationAddress string       `json:"destination_address"`
	DestinationLat     float64      `json:"destination_lat"`
	DestinationLng     float64      `json:"destination_lng"`
	Status             RideStatus   `json:"status"`
	VehicleClass       VehicleClass `json:"vehicle_class"`
	DistanceKm         float64      `json:"distance_km"`
	DurationMinutes    int          `json:"duration_minutes"`
	EstimatedFare      float64      `json:"estimated_fare"`
	FinalFare          *float64     `json:"final_fare,omitempty"`
	Rating             *int         `json:"rating,omitempty"`
	Feedback           string       `json:"feedback,omitempty"`
	ScheduledTime      *time.Time   `json:"scheduled_time,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	StartedAt          *time.Time   `json:"started_at,omitempty"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
}

func (r *Ride) Pickup() Coord      { return Coord{Lat: r.PickupLat, Lng: r.PickupLng} }
func (r *Ride) Destination() Coord { return Coord{Lat: r.DestinationLat, Lng: r.DestinationLng} }

// DriverLocationSnapshot is one driver's last reported position.
// Staleness is tolerated; UpdatedAt is informational only.
type DriverLocationSnapshot struct {
	DriverID    string    `json:"driver_id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	IsAvailable bool      `json:"is_available"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DriverProfile struct {
	UserID      string   `json:"user_id"`
	Rating      float64  `json:"rating"`
	TotalRides  int      `json:"total_rides"`
	IsAvailable bool     `json:"is_available"`
	CurrentLat  *float64 `json:"current_lat,omitempty"`
	CurrentLng  *float64 `json:"current_lng,omitempty"`
}
