package storage

import (
	"context"

	"tokenWatch/internal/model"
)

// Sink receives detected token records.
type Sink interface {
	Record(ctx context.Context, rec model.TokenRecord) error
}
