package driven

import (
	"context"

	"github.com/undltools/oaisync/internal/core/domain"
)

// PageFetcher issues a single paged request against the remote archive.
type PageFetcher interface {
	// FetchPage fetches and parses one page. When the request carries a
	// resumption token, all other selection parameters are omitted from
	// the wire. Returns *domain.ProtocolError when the response is an
	// error element, *domain.TransportError on network, timeout or
	// malformed-response conditions. Neither is retried here; retry
	// policy belongs to the caller.
	FetchPage(ctx context.Context, req domain.PageRequest) (*domain.Page, error)
}

// RecordExtractor normalizes one harvested record into a row shape.
// Extraction is pure: no I/O, no retained state.
type RecordExtractor interface {
	// ExtractDublinCore produces the flat-schema row. Deleted records
	// yield a tombstone with every descriptive field as an empty list.
	ExtractDublinCore(rec domain.HarvestedRecord, sourceURL string) (*domain.DublinCoreRow, error)

	// ExtractMarc produces the structured-schema row. A payload without
	// a structured record still yields the verbatim metadata block with
	// an absent structured object.
	ExtractMarc(rec domain.HarvestedRecord, sourceURL string) (*domain.MarcRow, error)
}
