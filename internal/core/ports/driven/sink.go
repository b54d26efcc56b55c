package driven

import (
	"context"

	"github.com/undltools/oaisync/internal/core/domain"
)

// DocumentSink persists normalized rows keyed by external identifier.
// Each page of a harvest is written inside one transaction so that a
// failed upsert aborts the whole page.
type DocumentSink interface {
	// BeginPage opens a transaction for one page of writes.
	BeginPage(ctx context.Context) (PageWriter, error)
}

// PageWriter upserts rows within a single page transaction. Exactly one
// of Commit or Rollback must be called; Rollback after Commit is a no-op.
type PageWriter interface {
	// UpsertDublinCore inserts or overwrites the flat-schema fields of
	// the row identified by row.Identifier. Fields owned by the other
	// schema variant are left untouched.
	UpsertDublinCore(ctx context.Context, row *domain.DublinCoreRow) error

	// UpsertMarc inserts or overwrites the structured-schema fields of
	// the row identified by row.Identifier.
	UpsertMarc(ctx context.Context, row *domain.MarcRow) error

	// Commit makes the page's writes durable as one atomic unit.
	Commit() error

	// Rollback discards the page's writes.
	Rollback() error
}
