package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// RedisIndex implements Source with Redis GEO commands so many server
// processes can share one view of the fleet. Availability and freshness
// live in a per-driver meta hash next to the geo set.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key}
}

func NewRedisIndexFromClient(c *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: c, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, snap models.DriverLocationSnapshot) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: snap.Lng,
		Latitude:  snap.Lat,
		Name:      snap.DriverID,
	}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(snap.DriverID), map[string]interface{}{
		"available": strconv.FormatBool(snap.IsAvailable),
		"updated":   time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Within(ctx context.Context, origin models.Coord, radiusKm float64) ([]models.DriverLocationSnapshot, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	res, err := r.client.GeoRadius(ctx, r.key, origin.Lng, origin.Lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.DriverLocationSnapshot, 0, len(res))
	for _, g := range res {
		snap := models.DriverLocationSnapshot{DriverID: g.Name, Lat: g.Latitude, Lng: g.Longitude}
		m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result()
		if err != nil {
			continue
		}
		snap.IsAvailable = m["available"] == "true"
		if ts, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
			snap.UpdatedAt = ts
		}
		if !snap.IsAvailable {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *RedisIndex) Close() error { return r.client.Close() }

func metaKey(driverID string) string { return "driver:meta:" + driverID }
