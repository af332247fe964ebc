package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *sql.NullTime:
			if r.values[i] == nil {
				*p = sql.NullTime{}
			} else {
				*p = sql.NullTime{Time: r.values[i].(time.Time), Valid: true}
			}
		default:
			return errors.New("unexpected destination type")
		}
	}
	return nil
}

func TestScanTrip(t *testing.T) {
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	trip, err := scanTrip(fakeRow{values: []any{"trip-1", "veh-7", "Depot", "1 Ferry Building", start, end}})
	require.NoError(t, err)
	assert.Equal(t, "trip-1", trip.ID)
	assert.Equal(t, "veh-7", trip.VehicleID)
	assert.Equal(t, "1 Ferry Building", trip.EndLocation)
	assert.Equal(t, start, trip.ScheduledStart)
	assert.True(t, trip.HasScheduledEnd())
	assert.Equal(t, end, trip.ScheduledEnd)
}

func TestScanTrip_NullSchedule(t *testing.T) {
	trip, err := scanTrip(fakeRow{values: []any{"trip-2", "", "", "Pier 39", nil, nil}})
	require.NoError(t, err)
	assert.True(t, trip.ScheduledStart.IsZero())
	assert.False(t, trip.HasScheduledEnd())
}

func TestScanTrip_Error(t *testing.T) {
	_, err := scanTrip(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
