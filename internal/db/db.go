package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleet-eta/internal/fleet"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const tripColumns = `id, COALESCE(vehicle_id, ''), COALESCE(start_location, ''), COALESCE(end_location, ''),
       scheduled_start, scheduled_end`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(r rowScanner) (fleet.Trip, error) {
	var t fleet.Trip
	var start, end sql.NullTime
	if err := r.Scan(&t.ID, &t.VehicleID, &t.StartLocation, &t.EndLocation, &start, &end); err != nil {
		return fleet.Trip{}, err
	}
	if start.Valid {
		t.ScheduledStart = start.Time
	}
	if end.Valid {
		t.ScheduledEnd = end.Time
	}
	return t, nil
}

// FetchTrip returns the trip with the given id, or sql.ErrNoRows.
func FetchTrip(ctx context.Context, db *sql.DB, tripID string) (fleet.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	t, err := scanTrip(db.QueryRowContext(ctx, q, tripID))
	if err != nil {
		return fleet.Trip{}, err
	}
	return t, nil
}

// FetchOpenTrip is FetchTrip restricted to trips that are scheduled or in
// progress; completed and cancelled trips yield sql.ErrNoRows.
func FetchOpenTrip(ctx context.Context, db *sql.DB, tripID string) (fleet.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 AND status IN ('scheduled', 'in_progress')`
	return scanTrip(db.QueryRowContext(ctx, q, tripID))
}

// FetchActiveTrips returns trips that are in progress, or scheduled to start
// within horizon of now.
func FetchActiveTrips(ctx context.Context, db *sql.DB, now time.Time, horizon time.Duration) ([]fleet.Trip, error) {
	q := `SELECT ` + tripColumns + `
FROM trips
WHERE status = 'in_progress'
   OR (status = 'scheduled' AND scheduled_start <= $1)`
	rows, err := db.QueryContext(ctx, q, now.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("query active trips: %w", err)
	}
	defer rows.Close()

	var trips []fleet.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// LookupAddress returns the stored coordinate for a normalized address key,
// or sql.ErrNoRows.
func LookupAddress(ctx context.Context, db *sql.DB, key string) (fleet.Coordinate, error) {
	q := `SELECT lat, lon FROM geocoded_addresses WHERE address_key = $1 LIMIT 1`
	var c fleet.Coordinate
	if err := db.QueryRowContext(ctx, q, key).Scan(&c.Lat, &c.Lon); err != nil {
		if err == sql.ErrNoRows {
			return fleet.Coordinate{}, err
		}
		return fleet.Coordinate{}, fmt.Errorf("query geocoded_addresses: %w", err)
	}
	return c, nil
}
