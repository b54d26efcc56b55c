package domain

// Schema identifiers for the two metadata representations the harvester
// understands. Anything else is rejected before the first fetch.
const (
	SchemaDublinCore = "oai_dc"
	SchemaMarc       = "marcxml"
)

// SupportedSchemas lists every schema the harvester can request, in the
// order they are processed when no explicit list is given.
var SupportedSchemas = []string{SchemaDublinCore, SchemaMarc}

// SchemaSupported reports whether the given metadata schema is one the
// harvester knows how to extract and persist.
func SchemaSupported(schema string) bool {
	for _, s := range SupportedSchemas {
		if s == schema {
			return true
		}
	}
	return false
}

// Window bounds a fresh (non-resumed) harvest request to records modified
// within an inclusive UTC time range. Values are passed through to the
// remote archive verbatim; empty means unbounded on that side.
type Window struct {
	From  string
	Until string
}

// PageRequest describes a single paged ListRecords request.
//
// ResumptionToken and the selection parameters (Schema, Window, Set) are
// mutually exclusive on the wire: once a token is present it alone
// determines the next page and the others must not be sent.
type PageRequest struct {
	// BaseURL is the remote archive endpoint.
	BaseURL string

	// Schema is the requested metadata schema (first page only).
	Schema string

	// Window bounds the harvest (first page only).
	Window Window

	// Set restricts the harvest to a named subset (first page only).
	Set string

	// ResumptionToken is the opaque server-side cursor for follow-up pages.
	ResumptionToken string
}

// HarvestedRecord is one record as returned by the remote archive.
// It is produced once per page and consumed immediately by extraction.
type HarvestedRecord struct {
	// Identifier is the record's globally unique external identifier.
	Identifier string

	// Datestamp is the record's last-modified timestamp (UTC, verbatim).
	Datestamp string

	// Deleted is true when the header carries a deleted status.
	Deleted bool

	// SetSpec is the record's subset membership, if any.
	SetSpec string

	// Metadata is the verbatim serialized metadata element, nil when the
	// record carries no metadata block (deleted records typically don't).
	Metadata []byte

	// HasHeader is false when the record element had no header; such
	// records are skipped and count toward nothing.
	HasHeader bool
}

// Page is one parsed ListRecords response page.
type Page struct {
	// Records holds the page's records in document order. A page with
	// zero records and a token is valid mid-harvest.
	Records []HarvestedRecord

	// ResumptionToken is the continuation cursor; empty means the
	// harvest is exhausted.
	ResumptionToken string

	// RequestURL is the URL this page was fetched from.
	RequestURL string
}
