package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleet-eta/internal/fleet"
)

// ErrNotFound is returned when an address does not resolve to a coordinate.
var ErrNotFound = errors.New("address not found")

// Gateway resolves a free-text address to a coordinate.
type Gateway interface {
	Geocode(ctx context.Context, address string) (fleet.Coordinate, error)
}

// Func adapts a plain function to Gateway.
type Func func(ctx context.Context, address string) (fleet.Coordinate, error)

func (f Func) Geocode(ctx context.Context, address string) (fleet.Coordinate, error) {
	return f(ctx, address)
}

// Normalize is the key form used by the static table and the cache.
func Normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Static resolves addresses from a fixed in-memory table.
type Static struct {
	table map[string]fleet.Coordinate
}

func NewStatic(table map[string]fleet.Coordinate) *Static {
	s := &Static{table: make(map[string]fleet.Coordinate, len(table))}
	for addr, c := range table {
		s.table[Normalize(addr)] = c
	}
	return s
}

func (s *Static) Geocode(ctx context.Context, address string) (fleet.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return fleet.Coordinate{}, err
	}
	c, ok := s.table[Normalize(address)]
	if !ok {
		return fleet.Coordinate{}, fmt.Errorf("%w: %q", ErrNotFound, address)
	}
	return c, nil
}

// Cached remembers successful lookups. Failures are never cached so the
// caller's retry reaches the underlying gateway again.
type Cached struct {
	next Gateway

	mu    sync.RWMutex
	cache map[string]fleet.Coordinate
}

func NewCached(next Gateway) *Cached {
	return &Cached{next: next, cache: make(map[string]fleet.Coordinate)}
}

func (c *Cached) Geocode(ctx context.Context, address string) (fleet.Coordinate, error) {
	key := Normalize(address)
	c.mu.RLock()
	coord, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return coord, nil
	}
	coord, err := c.next.Geocode(ctx, address)
	if err != nil {
		return fleet.Coordinate{}, err
	}
	c.mu.Lock()
	c.cache[key] = coord
	c.mu.Unlock()
	return coord, nil
}

func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every lookup by d. A non-positive d returns next unchanged.
func WithTimeout(next Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return next
	}
	return &timeoutGateway{next: next, timeout: d}
}

func (t *timeoutGateway) Geocode(ctx context.Context, address string) (fleet.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		c   fleet.Coordinate
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := t.next.Geocode(ctx, address)
		ch <- result{c, err}
	}()
	select {
	case <-ctx.Done():
		return fleet.Coordinate{}, fmt.Errorf("geocode %q: %w", address, ctx.Err())
	case r := <-ch:
		return r.c, r.err
	}
}
