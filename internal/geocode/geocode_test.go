package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-eta/internal/fleet"
)

var ferryBuilding = fleet.Coordinate{Lat: 37.7955, Lon: -122.3937}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]fleet.Coordinate{"1 Ferry Building, San Francisco": ferryBuilding})

	c, err := s.Geocode(context.Background(), "  1 ferry building,   SAN FRANCISCO ")
	require.NoError(t, err)
	assert.Equal(t, ferryBuilding, c)

	_, err = s.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Geocode(ctx, "1 Ferry Building, San Francisco")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		given    string
		expected string
	}{
		{given: "Main St", expected: "main st"},
		{given: "  Main \t St ", expected: "main st"},
		{given: "", expected: ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, Normalize(test.given))
	}
}

func TestCached(t *testing.T) {
	var calls atomic.Int32
	next := Func(func(ctx context.Context, address string) (fleet.Coordinate, error) {
		calls.Add(1)
		if address == "missing" {
			return fleet.Coordinate{}, ErrNotFound
		}
		return ferryBuilding, nil
	})
	c := NewCached(next)

	for i := 0; i < 3; i++ {
		coord, err := c.Geocode(context.Background(), "Ferry Building")
		require.NoError(t, err)
		assert.Equal(t, ferryBuilding, coord)
	}
	assert.Equal(t, int32(1), calls.Load())

	for i := 0; i < 2; i++ {
		_, err := c.Geocode(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, address string) (fleet.Coordinate, error) {
		select {
		case <-time.After(time.Second):
			return ferryBuilding, nil
		case <-ctx.Done():
			return fleet.Coordinate{}, ctx.Err()
		}
	})

	_, err := WithTimeout(slow, 20*time.Millisecond).Geocode(context.Background(), "x")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	fast := Func(func(ctx context.Context, address string) (fleet.Coordinate, error) {
		return ferryBuilding, nil
	})
	c, err := WithTimeout(fast, time.Second).Geocode(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, ferryBuilding, c)

	_, wrapped := WithTimeout(fast, 0).(*timeoutGateway)
	assert.False(t, wrapped)
}
