package store

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/labgate/go-astm/astm"
)

// MemStore is an in-memory Store used by tests and bench rigs. It is
// safe for concurrent use.
type MemStore struct {
	orders *xsync.MapOf[string, []astm.Order]

	mu       sync.Mutex
	readings []astm.Reading
}

var _ astm.Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		orders: xsync.NewMapOf[string, []astm.Order](),
	}
}

// SetOrders registers the pending orders for a lab number, replacing any
// previous set.
func (s *MemStore) SetOrders(labNumber string, orders []astm.Order) {
	s.orders.Store(labNumber, orders)
}

// InsertReadings appends the readings to the in-memory log.
func (s *MemStore) InsertReadings(ctx context.Context, readings []astm.Reading) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, readings...)

	return nil
}

// FetchOrders returns the registered orders for a lab number, or an empty
// slice when none are registered.
func (s *MemStore) FetchOrders(ctx context.Context, labNumber string) ([]astm.Order, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	orders, ok := s.orders.Load(labNumber)
	if !ok {
		return []astm.Order{}, nil
	}

	out := make([]astm.Order, len(orders))
	copy(out, orders)

	return out, nil
}

// Readings returns a copy of all readings inserted so far.
func (s *MemStore) Readings() []astm.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]astm.Reading, len(s.readings))
	copy(out, s.readings)

	return out
}
