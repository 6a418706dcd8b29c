package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labgate/go-astm/astm"
)

func TestMemStoreInsertAndReadBack(t *testing.T) {
	s := NewMemStore()

	readings := []astm.Reading{
		{LabNumber: "LAB1", MachineID: "m", Parameter: "m_GLU", Value: "5.3"},
		{LabNumber: "LAB1", MachineID: "m", Parameter: "m_ALB", Value: "41"},
	}

	require.NoError(t, s.InsertReadings(context.Background(), readings))
	assert.Equal(t, readings, s.Readings())
}

func TestMemStoreFetchOrders(t *testing.T) {
	s := NewMemStore()

	orders := []astm.Order{{AssayCode: "GLU"}, {AssayCode: "ALB"}}
	s.SetOrders("LAB900", orders)

	got, err := s.FetchOrders(context.Background(), "LAB900")
	require.NoError(t, err)
	assert.Equal(t, orders, got)

	// Unknown lab numbers yield an empty set, not an error.
	got, err = s.FetchOrders(context.Background(), "LAB999")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemStoreHonorsCancelledContext(t *testing.T) {
	s := NewMemStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.InsertReadings(ctx, []astm.Reading{{LabNumber: "LAB1"}})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.FetchOrders(ctx, "LAB1")
	assert.ErrorIs(t, err, context.Canceled)
}
