package models

// WebSocket event envelope types. Every server→client frame carries a
// "type" discriminator so clients can switch without sniffing payloads.
const (
	EventNewRideRequest       = "new_ride_request"
	EventRideStatusUpdate     = "ride_status_update"
	EventDriverLocationUpdate = "driver_location_update"
	EventMessage              = "message"
)

type NewRideRequestEvent struct {
	Type               string       `json:"type"`
	RideID             string       `json:"ride_id"`
	PickupAddress      string       `json:"pickup_address"`
	DestinationAddress string       `json:"destination_address"`
	DistanceKm         float64      `json:"distance_km"`
	EstimatedFare      float64      `json:"estimated_fare"`
	VehicleClass       VehicleClass `json:"vehicle_class"`
}

func NewRideRequest(r *Ride) NewRideRequestEvent {
	return NewRideRequestEvent{
		Type:               EventNewRideRequest,
		RideID:             r.ID,
		PickupAddress:      r.PickupAddress,
		DestinationAddress: r.DestinationAddress,
		DistanceKm:         r.DistanceKm,
		EstimatedFare:      r.EstimatedFare,
		VehicleClass:       r.VehicleClass,
	}
}

type RideStatusEvent struct {
	Type   string     `json:"type"`
	RideID string     `json:"ride_id"`
	Status RideStatus `json:"status"`
}

func NewRideStatus(r *Ride) RideStatusEvent {
	return RideStatusEvent{Type: EventRideStatusUpdate, RideID: r.ID, Status: r.Status}
}

type DriverLocationEvent struct {
	Type   string  `json:"type"`
	RideID string  `json:"ride_id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// MessageEvent wraps raw client text echoed back on the same socket.
// Diagnostic only; not part of the dispatch contract.
type MessageEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}
