package redisgeo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

const driversKey = "dispatch:drivers:geo"

// Index is the live driver-location index backed by Redis GEO commands.
// It is a cache over the Postgres driver table: entries are written on every
// location ping and removed when a driver goes offline. Lookups that fail
// here fall back to the database, so all methods treat Redis errors as
// recoverable.
type Index struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Index, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis geo index: ping: %w", err)
	}

	return &Index{client: c}, nil
}

// Upsert records the driver's latest position.
func (i *Index) Upsert(ctx context.Context, driverID uuid.UUID, lat, lon float64) error {
	err := i.client.GeoAdd(ctx, driversKey, &redis.GeoLocation{
		Name:      driverID.String(),
		Latitude:  lat,
		Longitude: lon,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis geo index: Upsert: %w", err)
	}

	return nil
}

// Remove drops the driver from the index, typically on going offline.
func (i *Index) Remove(ctx context.Context, driverID uuid.UUID) error {
	if err := i.client.ZRem(ctx, driversKey, driverID.String()).Err(); err != nil {
		return fmt.Errorf("redis geo index: Remove: %w", err)
	}

	return nil
}

// Nearby returns up to limit driver positions within radiusKm of the point,
// closest first.
func (i *Index) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.DriverPoint, error) {
	res, err := i.client.GeoSearchLocation(ctx, driversKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   lat,
			Longitude:  lon,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geo index: Nearby: %w", err)
	}

	points := make([]models.DriverPoint, 0, len(res))
	for _, loc := range res {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			// Skip foreign members rather than failing the lookup.
			continue
		}
		points = append(points, models.DriverPoint{
			ID:        id,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		})
	}

	return points, nil
}

func (i *Index) Close() error {
	return i.client.Close()
}
