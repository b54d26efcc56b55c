package driving

import (
	"context"
	"time"
)

// Harvester drives paged, resumable harvests against a remote archive.
type Harvester interface {
	// Run harvests every requested schema strictly one after another,
	// each with its own checkpoint entry. A protocol error terminates
	// the affected schema but later schemas still run; the returned
	// error reflects any failure. The report is returned even when an
	// error occurred.
	Run(ctx context.Context, opts RunOptions) (*RunReport, error)
}

// RunOptions are the caller-supplied parameters for one harvest run.
type RunOptions struct {
	// BaseURL is the remote archive endpoint.
	BaseURL string

	// Schemas lists the metadata schemas to harvest, in order.
	Schemas []string

	// From and Until bound a fresh harvest (inclusive, UTC). Ignored
	// once a resumption token is in play.
	From  string
	Until string

	// Set restricts the harvest to a named subset.
	Set string

	// Resume continues each schema from its stored checkpoint token.
	Resume bool

	// Delay is the pause between page fetches; zero skips the pause.
	Delay time.Duration

	// MaxPages and MaxRecords are per-schema budgets; zero means
	// unbounded. Reaching one stops the run resumably, token retained.
	MaxPages   int
	MaxRecords int
}

// SchemaReport summarises the outcome of one schema's harvest.
type SchemaReport struct {
	// Schema is the metadata schema this report covers.
	Schema string

	// RecordsWritten is the number of records upserted this run.
	RecordsWritten int

	// PagesFetched is the number of pages committed this run.
	PagesFetched int

	// ResumptionToken is the retained continuation token, nil when the
	// harvest is exhausted.
	ResumptionToken *string

	// Err is the terminal error for this schema, if any.
	Err error
}

// RunReport summarises a whole harvest run.
type RunReport struct {
	// RunID uniquely identifies this run in logs and checkpoints.
	RunID string

	// Schemas holds one report per requested schema, in request order.
	// A schema aborted before its first page still gets an entry.
	Schemas []SchemaReport
}
