package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driven"
	"github.com/undltools/oaisync/internal/core/ports/driving"
	"github.com/undltools/oaisync/internal/logger"
)

// Ensure Harvester implements the interface.
var _ driving.Harvester = (*Harvester)(nil)

// Harvester coordinates paged, resumable harvests. Schemas run strictly
// one after another; within a schema, one page is fully fetched,
// extracted, written and committed before the next request is issued.
type Harvester struct {
	fetcher     driven.PageFetcher
	extractor   driven.RecordExtractor
	sink        driven.DocumentSink
	checkpoints driven.CheckpointStore
	metrics     *Metrics
	progress    io.Writer
}

// NewHarvester creates a new harvester. Metrics are optional; nil
// disables them.
func NewHarvester(
	fetcher driven.PageFetcher,
	extractor driven.RecordExtractor,
	sink driven.DocumentSink,
	checkpoints driven.CheckpointStore,
	metrics *Metrics,
) *Harvester {
	return &Harvester{
		fetcher:     fetcher,
		extractor:   extractor,
		sink:        sink,
		checkpoints: checkpoints,
		metrics:     metrics,
		progress:    os.Stdout,
	}
}

// SetProgress directs per-page progress lines to w. Defaults to stdout.
func (h *Harvester) SetProgress(w io.Writer) {
	if w != nil {
		h.progress = w
	}
}

// pageState is the cursor of one schema's harvest. It is passed into and
// returned out of each page step; resume is just re-seeding the token
// from the stored checkpoint.
type pageState struct {
	token   string
	pages   int
	written int
}

// Run harvests every requested schema in order. Each schema keeps its own
// checkpoint entry; a failure in one schema does not stop the others. The
// combined error of all failed schemas is returned alongside the report.
func (h *Harvester) Run(ctx context.Context, opts driving.RunOptions) (*driving.RunReport, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", domain.ErrInvalidInput)
	}
	if len(opts.Schemas) == 0 {
		return nil, fmt.Errorf("%w: no metadata schema requested", domain.ErrInvalidInput)
	}
	for _, schema := range opts.Schemas {
		if !domain.SchemaSupported(schema) {
			return nil, fmt.Errorf("%w: %q (supported: %s, %s)",
				domain.ErrUnsupportedSchema, schema, domain.SchemaDublinCore, domain.SchemaMarc)
		}
	}

	checkpoints, err := h.checkpoints.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}

	report := &driving.RunReport{RunID: uuid.NewString()}
	logger.Info("Starting harvest run %s (schemas: %v)", report.RunID, opts.Schemas)

	var errs []error
	for _, schema := range opts.Schemas {
		schemaReport := h.harvestSchema(ctx, report.RunID, schema, opts, checkpoints)
		report.Schemas = append(report.Schemas, schemaReport)
		if schemaReport.Err != nil {
			errs = append(errs, fmt.Errorf("schema %s: %w", schema, schemaReport.Err))
		}
	}

	return report, errors.Join(errs...)
}

// harvestSchema drives one schema's page loop and keeps its checkpoint
// entry current after every committed page.
func (h *Harvester) harvestSchema(
	ctx context.Context,
	runID string,
	schema string,
	opts driving.RunOptions,
	checkpoints domain.Checkpoints,
) driving.SchemaReport {
	report := driving.SchemaReport{Schema: schema}

	st := pageState{}
	if opts.Resume {
		if entry, ok := checkpoints[schema]; ok && entry.ResumptionToken != nil {
			st.token = *entry.ResumptionToken
			logger.Info("Resuming schema %s from stored token", schema)
		}
	}

	// The limiter starts with one free slot, so the first fetch is
	// immediate and later fetches are spaced by the configured delay.
	var limiter *rate.Limiter
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	for {
		if opts.MaxPages > 0 && st.pages >= opts.MaxPages {
			logger.Info("Schema %s reached the page budget (%d)", schema, opts.MaxPages)
			break
		}
		if opts.MaxRecords > 0 && st.written >= opts.MaxRecords {
			logger.Info("Schema %s reached the record budget (%d)", schema, opts.MaxRecords)
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				report.Err = err
				return h.finishSchema(ctx, report, checkpoints, schema, runID, opts, st)
			}
		}

		next, more, err := h.harvestPage(ctx, schema, opts, st)
		if err != nil {
			report.Err = err
			h.metrics.IncFailure(errorType(err))
			return h.finishSchema(ctx, report, checkpoints, schema, runID, opts, st)
		}
		st = next

		// A crash after this point loses at most the page in flight,
		// never a committed one.
		h.writeCheckpoint(ctx, checkpoints, schema, runID, opts, st, nil)

		if !more {
			break
		}
	}

	return h.finishSchema(ctx, report, checkpoints, schema, runID, opts, st)
}

// harvestPage executes one page step: fetch, extract, write and commit.
// It returns the advanced state and whether more pages remain.
func (h *Harvester) harvestPage(
	ctx context.Context,
	schema string,
	opts driving.RunOptions,
	st pageState,
) (pageState, bool, error) {
	req := domain.PageRequest{
		BaseURL:         opts.BaseURL,
		Schema:          schema,
		Window:          domain.Window{From: opts.From, Until: opts.Until},
		Set:             opts.Set,
		ResumptionToken: st.token,
	}

	start := time.Now()
	page, err := h.fetcher.FetchPage(ctx, req)
	h.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		return st, false, err
	}

	writer, err := h.sink.BeginPage(ctx)
	if err != nil {
		return st, false, fmt.Errorf("begin page: %w", err)
	}

	for _, rec := range page.Records {
		if !rec.HasHeader {
			h.metrics.IncSkipped("missing_header")
			continue
		}
		if err := h.upsertRecord(ctx, writer, schema, rec, opts.BaseURL); err != nil {
			if errors.Is(err, domain.ErrExtractionAnomaly) {
				logger.Warn("Skipping record %s: %v", rec.Identifier, err)
				h.metrics.IncSkipped("extraction")
				continue
			}
			// A failed write aborts the whole page.
			_ = writer.Rollback()
			return st, false, err
		}
		st.written++
		if opts.MaxRecords > 0 && st.written >= opts.MaxRecords {
			break
		}
	}

	if err := writer.Commit(); err != nil {
		_ = writer.Rollback()
		return st, false, fmt.Errorf("commit page: %w", err)
	}

	st.pages++
	st.token = page.ResumptionToken
	h.metrics.IncPage(schema)

	more := st.token != ""
	fmt.Fprintf(h.progress, "schema=%s page=%d records_in_page=%d total_written=%d token=%s\n",
		schema, st.pages, len(page.Records), st.written, yesNo(more))
	return st, more, nil
}

// upsertRecord normalizes one record and writes it through the page
// writer. Extraction failures are wrapped as anomalies so the caller can
// skip the record without aborting the page.
func (h *Harvester) upsertRecord(
	ctx context.Context,
	writer driven.PageWriter,
	schema string,
	rec domain.HarvestedRecord,
	sourceURL string,
) error {
	switch schema {
	case domain.SchemaDublinCore:
		row, err := h.extractor.ExtractDublinCore(rec, sourceURL)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExtractionAnomaly, err)
		}
		if err := writer.UpsertDublinCore(ctx, row); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.Identifier, err)
		}
	case domain.SchemaMarc:
		row, err := h.extractor.ExtractMarc(rec, sourceURL)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExtractionAnomaly, err)
		}
		if err := writer.UpsertMarc(ctx, row); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.Identifier, err)
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedSchema, schema)
	}
	h.metrics.IncRecords(schema, 1)
	return nil
}

// finishSchema fills the report from the final state and persists the
// schema's checkpoint entry, including the error block when the schema
// terminated on a failure.
func (h *Harvester) finishSchema(
	ctx context.Context,
	report driving.SchemaReport,
	checkpoints domain.Checkpoints,
	schema string,
	runID string,
	opts driving.RunOptions,
	st pageState,
) driving.SchemaReport {
	report.RecordsWritten = st.written
	report.PagesFetched = st.pages
	if st.token != "" {
		token := st.token
		report.ResumptionToken = &token
	}

	var checkpointErr *domain.CheckpointError
	if perr, ok := domain.AsProtocolError(report.Err); ok {
		checkpointErr = &domain.CheckpointError{
			Code:       perr.Code,
			Message:    perr.Message,
			RequestURL: perr.RequestURL,
		}
	}
	h.writeCheckpoint(ctx, checkpoints, schema, runID, opts, st, checkpointErr)

	if report.Err != nil {
		logger.Error("Schema %s terminated: %v", schema, report.Err)
	}
	return report
}

// writeCheckpoint replaces the schema's checkpoint entry and persists the
// whole document. Entries of other schemas are preserved as loaded.
func (h *Harvester) writeCheckpoint(
	ctx context.Context,
	checkpoints domain.Checkpoints,
	schema string,
	runID string,
	opts driving.RunOptions,
	st pageState,
	checkpointErr *domain.CheckpointError,
) {
	entry := domain.Checkpoint{
		UpdatedAt:      time.Now().UTC(),
		RunID:          runID,
		RecordsWritten: st.written,
		PagesFetched:   st.pages,
		From:           opts.From,
		Until:          opts.Until,
		Set:            opts.Set,
		Error:          checkpointErr,
	}
	if st.token != "" {
		token := st.token
		entry.ResumptionToken = &token
	}
	checkpoints[schema] = entry

	if err := h.checkpoints.Save(ctx, checkpoints); err != nil {
		// Progress already committed to the store is not lost; at worst
		// a resumed run replays the last page through idempotent upserts.
		logger.Error("Failed to save checkpoint for schema %s: %v", schema, err)
	}
}

func errorType(err error) string {
	if _, ok := domain.AsProtocolError(err); ok {
		return "protocol"
	}
	if _, ok := domain.AsTransportError(err); ok {
		return "transport"
	}
	return "other"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
