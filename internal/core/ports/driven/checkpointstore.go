package driven

import (
	"context"

	"github.com/undltools/oaisync/internal/core/domain"
)

// CheckpointStore persists harvest resume state.
type CheckpointStore interface {
	// Load reads the whole checkpoint document. A missing file yields an
	// empty map, not an error.
	Load(ctx context.Context) (domain.Checkpoints, error)

	// Save rewrites the whole checkpoint document, creating any missing
	// parent location. Called after every committed page.
	Save(ctx context.Context, checkpoints domain.Checkpoints) error
}
