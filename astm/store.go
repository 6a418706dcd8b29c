package astm

import "context"

// Store is the persistence collaborator of the session controller.
//
// Implementations may be shared across sessions; each call is
// self-contained and no per-session transaction spans calls.
type Store interface {
	// InsertReadings persists the readings extracted from one received
	// message. Atomicity per call is not required; best-effort per-row is
	// sufficient.
	InsertReadings(ctx context.Context, readings []Reading) error

	// FetchOrders returns the pending orders for a queried lab number.
	// It may return an empty slice; the result order determines the
	// sequence numbering of the outbound order records.
	FetchOrders(ctx context.Context, labNumber string) ([]Order, error)
}
