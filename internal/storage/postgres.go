package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/ride"
)

// PostgresStore persists rides and driver profiles. Status changes use
// a conditional UPDATE on the previous status so two concurrent
// transitions on one ride cannot both win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

const rideColumns = `id, rider_id, driver_id, pickup_address, pickup_lat, pickup_lng,
	destination_address, destination_lat, destination_lng, status, vehicle_class,
	distance_km, duration_minutes, estimated_fare, final_fare, rating, feedback,
	scheduled_time, created_at, started_at, completed_at`

func (p *PostgresStore) Create(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(`+rideColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		r.ID, r.RiderID, nullString(r.DriverID), r.PickupAddress, r.PickupLat, r.PickupLng,
		r.DestinationAddress, r.DestinationLat, r.DestinationLng, string(r.Status), string(r.VehicleClass),
		r.DistanceKm, r.DurationMinutes, r.EstimatedFare, r.FinalFare, r.Rating, nullString(r.Feedback),
		r.ScheduledTime, r.CreatedAt, r.StartedAt, r.CompletedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ride.ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) ListForRider(ctx context.Context, riderID string, status models.RideStatus) ([]*models.Ride, error) {
	q := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id=$1`
	args := []interface{}{riderID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	return p.queryRides(ctx, q, args...)
}

func (p *PostgresStore) ListForDriver(ctx context.Context, driverID string, status models.RideStatus) ([]*models.Ride, error) {
	q := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id=$1`
	args := []interface{}{driverID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	return p.queryRides(ctx, q, args...)
}

func (p *PostgresStore) ListUnassignedPending(ctx context.Context) ([]*models.Ride, error) {
	return p.queryRides(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE status=$1 AND driver_id IS NULL ORDER BY created_at DESC`, string(models.StatusPending))
}

func (p *PostgresStore) ActiveForDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	return p.queryRides(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE driver_id=$1 AND status IN ($2,$3) ORDER BY created_at DESC`,
		driverID, string(models.StatusAccepted), string(models.StatusInProgress))
}

func (p *PostgresStore) UpdateFrom(ctx context.Context, r *models.Ride, prev models.RideStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET driver_id=$1, status=$2, final_fare=$3,
		started_at=$4, completed_at=$5 WHERE id=$6 AND status=$7`,
		nullString(r.DriverID), string(r.Status), r.FinalFare, r.StartedAt, r.CompletedAt,
		r.ID, string(prev))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// lost the race or the ride never existed
		var one int
		if err := p.db.QueryRowContext(ctx, `SELECT 1 FROM rides WHERE id=$1`, r.ID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ride.ErrNotFound
			}
			return err
		}
		return fmt.Errorf("%w: ride no longer %s", ride.ErrInvalidTransition, prev)
	}
	return nil
}

func (p *PostgresStore) SetRating(ctx context.Context, rideID string, rating int, feedback string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET rating=$1, feedback=$2 WHERE id=$3 AND rating IS NULL`,
		rating, nullString(feedback), rideID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		if err := p.db.QueryRowContext(ctx, `SELECT 1 FROM rides WHERE id=$1`, rideID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ride.ErrNotFound
			}
			return err
		}
		return fmt.Errorf("%w: ride already rated", ride.ErrInvalidTransition)
	}
	return nil
}

func (p *PostgresStore) RatingsForDriver(ctx context.Context, driverID string) ([]int, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT rating FROM rides WHERE driver_id=$1 AND rating IS NOT NULL`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetDriver(ctx context.Context, userID string) (*models.DriverProfile, error) {
	var d models.DriverProfile
	err := p.db.QueryRowContext(ctx, `SELECT user_id, rating, total_rides, is_available, current_lat, current_lng
		FROM driver_profiles WHERE user_id=$1`, userID).
		Scan(&d.UserID, &d.Rating, &d.TotalRides, &d.IsAvailable, &d.CurrentLat, &d.CurrentLng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ride.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *PostgresStore) UpsertLocation(ctx context.Context, userID string, lat, lng float64) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO driver_profiles(user_id, current_lat, current_lng)
		VALUES($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET current_lat=EXCLUDED.current_lat, current_lng=EXCLUDED.current_lng, updated_at=now()`,
		userID, lat, lng)
	return err
}

func (p *PostgresStore) SetAvailability(ctx context.Context, userID string, available bool) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO driver_profiles(user_id, is_available)
		VALUES($1,$2)
		ON CONFLICT (user_id) DO UPDATE SET is_available=EXCLUDED.is_available, updated_at=now()`,
		userID, available)
	return err
}

func (p *PostgresStore) IncrementTotalRides(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE driver_profiles SET total_rides=total_rides+1, updated_at=now() WHERE user_id=$1`, userID)
	return err
}

func (p *PostgresStore) SetDriverRating(ctx context.Context, userID string, rating float64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE driver_profiles SET rating=$1, updated_at=now() WHERE user_id=$2`, rating, userID)
	return err
}

func (p *PostgresStore) queryRides(ctx context.Context, q string, args ...interface{}) ([]*models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(s scanner) (*models.Ride, error) {
	var r models.Ride
	var driverID, feedback sql.NullString
	var status, class string
	err := s.Scan(&r.ID, &r.RiderID, &driverID, &r.PickupAddress, &r.PickupLat, &r.PickupLng,
		&r.DestinationAddress, &r.DestinationLat, &r.DestinationLng, &status, &class,
		&r.DistanceKm, &r.DurationMinutes, &r.EstimatedFare, &r.FinalFare, &r.Rating, &feedback,
		&r.ScheduledTime, &r.CreatedAt, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	r.DriverID = driverID.String
	r.Feedback = feedback.String
	r.Status = models.RideStatus(status)
	r.VehicleClass = models.VehicleClass(class)
	return &r, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
