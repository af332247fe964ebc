package geocode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleet-eta/internal/db"
	"fleet-eta/internal/fleet"
)

// Postgres resolves addresses from the geocoded_addresses table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(sqlDB *sql.DB) *Postgres {
	return &Postgres{db: sqlDB}
}

func (p *Postgres) Geocode(ctx context.Context, address string) (fleet.Coordinate, error) {
	c, err := db.LookupAddress(ctx, p.db, Normalize(address))
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Coordinate{}, fmt.Errorf("%w: %q", ErrNotFound, address)
	}
	return c, err
}
