package ports

import (
	"context"

	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
)

// DocumentStore is the driver port for a document database collection.
// Implementations translate vendor failures into pkg/errors types and never
// return a raw SDK error.
type DocumentStore interface {
	// Write applies req.Precondition atomically and returns the stored
	// document with the version token the store assigned.
	Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error)

	// Read is a point read scoped to the key's partition.
	Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error)

	// Close releases connections held by the driver
	Close() error
}

// HealthChecker is implemented by drivers that can verify the target
// collection is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
