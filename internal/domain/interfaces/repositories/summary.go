package repositories

import (
	"context"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// SummaryRepository is the append-only per-sweep summary document
type SummaryRepository interface {
	// Has reports whether a record for the binary was already appended
	Has(ctx context.Context, binary string) (bool, error)

	// Append adds one record. Appending an existing name is an error.
	Append(ctx context.Context, record *entities.BenchmarkRecord) error

	// Records returns all records in name order
	Records(ctx context.Context) ([]*entities.BenchmarkRecord, error)
}
