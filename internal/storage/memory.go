package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/ride"
)

// MemoryStore keeps rides and driver profiles in process. Used for
// local runs without Postgres and throughout the tests. It honors the
// same conditional-update contract as the Postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	rides   map[string]*models.Ride
	drivers map[string]*models.DriverProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:   make(map[string]*models.Ride),
		drivers: make(map[string]*models.DriverProfile),
	}
}

func (m *MemoryStore) Create(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; ok {
		return fmt.Errorf("ride %s already exists", r.ID)
	}
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListForRider(_ context.Context, riderID string, status models.RideStatus) ([]*models.Ride, error) {
	return m.list(func(r *models.Ride) bool {
		return r.RiderID == riderID && (status == "" || r.Status == status)
	}), nil
}

func (m *MemoryStore) ListForDriver(_ context.Context, driverID string, status models.RideStatus) ([]*models.Ride, error) {
	return m.list(func(r *models.Ride) bool {
		return r.DriverID == driverID && (status == "" || r.Status == status)
	}), nil
}

func (m *MemoryStore) ListUnassignedPending(_ context.Context) ([]*models.Ride, error) {
	return m.list(func(r *models.Ride) bool {
		return r.Status == models.StatusPending && r.DriverID == ""
	}), nil
}

func (m *MemoryStore) ActiveForDriver(_ context.Context, driverID string) ([]*models.Ride, error) {
	return m.list(func(r *models.Ride) bool {
		return r.DriverID == driverID &&
			(r.Status == models.StatusAccepted || r.Status == models.StatusInProgress)
	}), nil
}

func (m *MemoryStore) UpdateFrom(_ context.Context, r *models.Ride, prev models.RideStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[r.ID]
	if !ok {
		return ride.ErrNotFound
	}
	if cur.Status != prev {
		return fmt.Errorf("%w: ride is %s, expected %s", ride.ErrInvalidTransition, cur.Status, prev)
	}
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) SetRating(_ context.Context, rideID string, rating int, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[rideID]
	if !ok {
		return ride.ErrNotFound
	}
	if cur.Rating != nil {
		return fmt.Errorf("%w: ride already rated", ride.ErrInvalidTransition)
	}
	cur.Rating = &rating
	cur.Feedback = feedback
	return nil
}

func (m *MemoryStore) RatingsForDriver(_ context.Context, driverID string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int
	for _, r := range m.rides {
		if r.DriverID == driverID && r.Rating != nil {
			out = append(out, *r.Rating)
		}
	}
	return out, nil
}

func (m *MemoryStore) list(match func(*models.Ride) bool) []*models.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	// newest first, stable for tests
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) profile(userID string) *models.DriverProfile {
	p, ok := m.drivers[userID]
	if !ok {
		p = &models.DriverProfile{UserID: userID, Rating: 5.0, IsAvailable: true}
		m.drivers[userID] = p
	}
	return p
}

func (m *MemoryStore) GetDriver(_ context.Context, userID string) (*models.DriverProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.drivers[userID]
	if !ok {
		return nil, ride.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) UpsertLocation(_ context.Context, userID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(userID)
	p.CurrentLat = &lat
	p.CurrentLng = &lng
	return nil
}

func (m *MemoryStore) SetAvailability(_ context.Context, userID string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile(userID).IsAvailable = available
	return nil
}

func (m *MemoryStore) IncrementTotalRides(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile(userID).TotalRides++
	return nil
}

func (m *MemoryStore) SetDriverRating(_ context.Context, userID string, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile(userID).Rating = rating
	return nil
}
