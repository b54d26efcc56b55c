package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driven"
	"github.com/undltools/oaisync/internal/core/ports/driving"
)

// --- Mock implementations for harvest testing ---

// harvestMockFetcher serves canned pages keyed by schema and token.
type harvestMockFetcher struct {
	pages    map[string]*domain.Page
	errs     map[string]error
	requests []domain.PageRequest
}

func pageKey(schema, token string) string {
	return schema + "|" + token
}

func (m *harvestMockFetcher) FetchPage(_ context.Context, req domain.PageRequest) (*domain.Page, error) {
	m.requests = append(m.requests, req)
	key := pageKey(req.Schema, req.ResumptionToken)
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	page, ok := m.pages[key]
	if !ok {
		return nil, &domain.TransportError{URL: req.BaseURL, Err: errors.New("no page configured")}
	}
	return page, nil
}

// harvestMockExtractor maps records straight onto rows, optionally
// failing for selected identifiers.
type harvestMockExtractor struct {
	failIdentifiers map[string]bool
}

func (m *harvestMockExtractor) ExtractDublinCore(rec domain.HarvestedRecord, sourceURL string) (*domain.DublinCoreRow, error) {
	if m.failIdentifiers[rec.Identifier] {
		return nil, errors.New("malformed payload")
	}
	return &domain.DublinCoreRow{
		Identifier: rec.Identifier,
		Datestamp:  rec.Datestamp,
		Deleted:    rec.Deleted,
		Set:        rec.SetSpec,
		SourceURL:  sourceURL,
		Fields:     domain.EmptyDublinCoreFields(),
	}, nil
}

func (m *harvestMockExtractor) ExtractMarc(rec domain.HarvestedRecord, sourceURL string) (*domain.MarcRow, error) {
	if m.failIdentifiers[rec.Identifier] {
		return nil, errors.New("malformed payload")
	}
	return &domain.MarcRow{
		Identifier: rec.Identifier,
		Datestamp:  rec.Datestamp,
		Deleted:    rec.Deleted,
		Set:        rec.SetSpec,
		SourceURL:  sourceURL,
	}, nil
}

// harvestMockSink buffers rows per page and keeps only committed ones.
type harvestMockSink struct {
	committed    map[string]int
	beginErr     error
	upsertErrFor string
	commits      int
	rollbacks    int
}

func newHarvestMockSink() *harvestMockSink {
	return &harvestMockSink{committed: make(map[string]int)}
}

func (s *harvestMockSink) BeginPage(_ context.Context) (driven.PageWriter, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &harvestMockPageWriter{sink: s}, nil
}

type harvestMockPageWriter struct {
	sink      *harvestMockSink
	buffered  []string
	committed bool
}

func (w *harvestMockPageWriter) UpsertDublinCore(_ context.Context, row *domain.DublinCoreRow) error {
	return w.buffer(row.Identifier)
}

func (w *harvestMockPageWriter) UpsertMarc(_ context.Context, row *domain.MarcRow) error {
	return w.buffer(row.Identifier)
}

func (w *harvestMockPageWriter) buffer(identifier string) error {
	if w.sink.upsertErrFor == identifier {
		return errors.New("write failed")
	}
	w.buffered = append(w.buffered, identifier)
	return nil
}

func (w *harvestMockPageWriter) Commit() error {
	for _, id := range w.buffered {
		w.sink.committed[id]++
	}
	w.committed = true
	w.sink.commits++
	return nil
}

func (w *harvestMockPageWriter) Rollback() error {
	if !w.committed {
		w.sink.rollbacks++
	}
	return nil
}

// harvestMockCheckpointStore keeps the checkpoint document in memory.
type harvestMockCheckpointStore struct {
	state domain.Checkpoints
	saves int
}

func (s *harvestMockCheckpointStore) Load(_ context.Context) (domain.Checkpoints, error) {
	if s.state == nil {
		s.state = domain.Checkpoints{}
	}
	return s.state, nil
}

func (s *harvestMockCheckpointStore) Save(_ context.Context, checkpoints domain.Checkpoints) error {
	s.state = checkpoints
	s.saves++
	return nil
}

// --- Helpers ---

// newTestHarvester builds a harvester with progress output silenced.
func newTestHarvester(
	fetcher driven.PageFetcher,
	extractor driven.RecordExtractor,
	sink driven.DocumentSink,
	store driven.CheckpointStore,
	metrics *Metrics,
) *Harvester {
	h := NewHarvester(fetcher, extractor, sink, store, metrics)
	h.SetProgress(io.Discard)
	return h
}

func makeRecords(start, count int) []domain.HarvestedRecord {
	records := make([]domain.HarvestedRecord, 0, count)
	for i := start; i < start+count; i++ {
		records = append(records, domain.HarvestedRecord{
			Identifier: fmt.Sprintf("oai:test:%d", i),
			Datestamp:  "2025-01-10T00:00:00Z",
			HasHeader:  true,
		})
	}
	return records
}

// threePageFetcher serves the canonical 10/10/5 chain for one schema.
func threePageFetcher(schema string) *harvestMockFetcher {
	return &harvestMockFetcher{
		pages: map[string]*domain.Page{
			pageKey(schema, ""):   {Records: makeRecords(0, 10), ResumptionToken: "t1"},
			pageKey(schema, "t1"): {Records: makeRecords(10, 10), ResumptionToken: "t2"},
			pageKey(schema, "t2"): {Records: makeRecords(20, 5)},
		},
	}
}

func baseOptions(schemas ...string) driving.RunOptions {
	return driving.RunOptions{
		BaseURL: "https://archive.example.org/oai2d",
		Schemas: schemas,
		From:    "2025-01-01T00:00:00Z",
	}
}

// --- Tests ---

func TestRun_EndToEnd(t *testing.T) {
	fetcher := threePageFetcher(domain.SchemaDublinCore)
	sink := newHarvestMockSink()
	store := &harvestMockCheckpointStore{}
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, store, nil)

	report, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err)
	require.Len(t, report.Schemas, 1)
	assert.NotEmpty(t, report.RunID)

	schemaReport := report.Schemas[0]
	assert.Equal(t, 25, schemaReport.RecordsWritten)
	assert.Equal(t, 3, schemaReport.PagesFetched)
	assert.Nil(t, schemaReport.ResumptionToken, "exhausted harvest retains no token")
	assert.NoError(t, schemaReport.Err)

	assert.Len(t, sink.committed, 25)
	assert.Equal(t, 3, sink.commits)

	entry := store.state[domain.SchemaDublinCore]
	assert.Nil(t, entry.ResumptionToken)
	assert.Equal(t, 25, entry.RecordsWritten)
	assert.Equal(t, 3, entry.PagesFetched)
	assert.Equal(t, "2025-01-01T00:00:00Z", entry.From)
	assert.Nil(t, entry.Error)
	assert.False(t, entry.UpdatedAt.IsZero())
	assert.GreaterOrEqual(t, store.saves, 3, "checkpoint persists after every committed page")
}

func TestRun_UnsupportedSchema(t *testing.T) {
	fetcher := &harvestMockFetcher{}
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, newHarvestMockSink(), &harvestMockCheckpointStore{}, nil)

	_, err := harvester.Run(context.Background(), baseOptions("mods"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedSchema)
	assert.Empty(t, fetcher.requests, "validation failures abort before any request")
}

func TestRun_MissingBaseURL(t *testing.T) {
	harvester := newTestHarvester(&harvestMockFetcher{}, &harvestMockExtractor{}, newHarvestMockSink(), &harvestMockCheckpointStore{}, nil)

	opts := baseOptions(domain.SchemaDublinCore)
	opts.BaseURL = ""
	_, err := harvester.Run(context.Background(), opts)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRun_EmptyPageWithTokenContinues(t *testing.T) {
	fetcher := &harvestMockFetcher{
		pages: map[string]*domain.Page{
			pageKey(domain.SchemaDublinCore, ""):   {ResumptionToken: "t1"},
			pageKey(domain.SchemaDublinCore, "t1"): {Records: makeRecords(0, 3)},
		},
	}
	sink := newHarvestMockSink()
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, &harvestMockCheckpointStore{}, nil)

	report, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Schemas[0].PagesFetched, "an empty page with a token is not the end")
	assert.Equal(t, 3, report.Schemas[0].RecordsWritten)
}

func TestRun_PageBudgetStopsResumably(t *testing.T) {
	fetcher := threePageFetcher(domain.SchemaDublinCore)
	sink := newHarvestMockSink()
	store := &harvestMockCheckpointStore{}
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, store, nil)

	opts := baseOptions(domain.SchemaDublinCore)
	opts.MaxPages = 1
	report, err := harvester.Run(context.Background(), opts)
	require.NoError(t, err, "a budget stop is a deliberate early stop, not an error")

	schemaReport := report.Schemas[0]
	assert.Equal(t, 1, schemaReport.PagesFetched)
	assert.Equal(t, 10, schemaReport.RecordsWritten)
	require.NotNil(t, schemaReport.ResumptionToken)
	assert.Equal(t, "t1", *schemaReport.ResumptionToken)

	entry := store.state[domain.SchemaDublinCore]
	require.NotNil(t, entry.ResumptionToken)
	assert.Equal(t, "t1", *entry.ResumptionToken)
}

func TestRun_RecordBudgetStopsMidPage(t *testing.T) {
	fetcher := threePageFetcher(domain.SchemaDublinCore)
	sink := newHarvestMockSink()
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, &harvestMockCheckpointStore{}, nil)

	opts := baseOptions(domain.SchemaDublinCore)
	opts.MaxRecords = 5
	report, err := harvester.Run(context.Background(), opts)
	require.NoError(t, err)

	schemaReport := report.Schemas[0]
	assert.Equal(t, 5, schemaReport.RecordsWritten)
	assert.Equal(t, 1, schemaReport.PagesFetched)
	assert.Len(t, sink.committed, 5, "the partial page is still committed")
	require.NotNil(t, schemaReport.ResumptionToken)
}

func TestRun_ResumeMatchesUnboundedRun(t *testing.T) {
	// Budgeted runs with resume, one page at a time.
	resumedSink := newHarvestMockSink()
	store := &harvestMockCheckpointStore{}
	opts := baseOptions(domain.SchemaDublinCore)
	opts.MaxPages = 1
	opts.Resume = true

	for i := 0; i < 3; i++ {
		fetcher := threePageFetcher(domain.SchemaDublinCore)
		harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, resumedSink, store, nil)
		_, err := harvester.Run(context.Background(), opts)
		require.NoError(t, err)
	}

	entry := store.state[domain.SchemaDublinCore]
	assert.Nil(t, entry.ResumptionToken, "third run exhausts the harvest")

	// One unbounded run against the same pages.
	unboundedSink := newHarvestMockSink()
	harvester := newTestHarvester(threePageFetcher(domain.SchemaDublinCore), &harvestMockExtractor{}, unboundedSink, &harvestMockCheckpointStore{}, nil)
	_, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err)

	assert.Equal(t, unboundedSink.committed, resumedSink.committed)
}

func TestRun_ProtocolErrorLeavesOtherSchemasUnaffected(t *testing.T) {
	fetcher := &harvestMockFetcher{
		pages: map[string]*domain.Page{
			pageKey(domain.SchemaDublinCore, ""): {Records: makeRecords(0, 10), ResumptionToken: "t1"},
			pageKey(domain.SchemaMarc, ""):       {Records: makeRecords(100, 5)},
		},
		errs: map[string]error{
			pageKey(domain.SchemaDublinCore, "t1"): &domain.ProtocolError{
				Code:       "badResumptionToken",
				Message:    "token expired",
				RequestURL: "https://archive.example.org/oai2d?verb=ListRecords",
			},
		},
	}
	sink := newHarvestMockSink()
	store := &harvestMockCheckpointStore{}
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, store, nil)

	report, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore, domain.SchemaMarc))
	require.Error(t, err)
	protoErr, ok := domain.AsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, "badResumptionToken", protoErr.Code)

	require.Len(t, report.Schemas, 2)
	dcReport := report.Schemas[0]
	assert.Error(t, dcReport.Err)
	assert.Equal(t, 10, dcReport.RecordsWritten, "page 1 writes stay committed")
	assert.Equal(t, 1, dcReport.PagesFetched)

	marcReport := report.Schemas[1]
	assert.NoError(t, marcReport.Err)
	assert.Equal(t, 5, marcReport.RecordsWritten)

	dcEntry := store.state[domain.SchemaDublinCore]
	require.NotNil(t, dcEntry.Error)
	assert.Equal(t, "badResumptionToken", dcEntry.Error.Code)
	assert.Equal(t, "token expired", dcEntry.Error.Message)
	require.NotNil(t, dcEntry.ResumptionToken, "the failed page's token is retained for retry")
	assert.Equal(t, "t1", *dcEntry.ResumptionToken)

	marcEntry := store.state[domain.SchemaMarc]
	assert.Nil(t, marcEntry.Error)
	assert.Equal(t, 5, marcEntry.RecordsWritten)
}

func TestRun_TransportErrorTerminatesSchema(t *testing.T) {
	fetcher := &harvestMockFetcher{
		errs: map[string]error{
			pageKey(domain.SchemaDublinCore, ""): &domain.TransportError{
				URL: "https://archive.example.org/oai2d",
				Err: errors.New("connection refused"),
			},
		},
	}
	store := &harvestMockCheckpointStore{}
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, newHarvestMockSink(), store, nil)

	report, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.Error(t, err)
	_, ok := domain.AsTransportError(err)
	assert.True(t, ok)

	entry := store.state[domain.SchemaDublinCore]
	assert.Nil(t, entry.Error, "only protocol errors are recorded in the checkpoint")
	assert.Equal(t, 0, report.Schemas[0].RecordsWritten)
}

func TestRun_MissingHeaderSkipped(t *testing.T) {
	records := makeRecords(0, 2)
	records = append(records, domain.HarvestedRecord{Metadata: []byte("<metadata/>")})
	fetcher := &harvestMockFetcher{
		pages: map[string]*domain.Page{
			pageKey(domain.SchemaDublinCore, ""): {Records: records},
		},
	}
	sink := newHarvestMockSink()
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, &harvestMockCheckpointStore{}, nil)

	report, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Schemas[0].RecordsWritten)
	assert.Len(t, sink.committed, 2)
}

func TestRun_ExtractionAnomalySkipsRecordOnly(t *testing.T) {
	fetcher := &harvestMockFetcher{
		pages: map[string]*domain.Page{
			pageKey(domain.SchemaDublinCore, ""): {Records: makeRecords(0, 3)},
		},
	}
	extractor := &harvestMockExtractor{failIdentifiers: map[string]bool{"oai:test:1": true}}
	sink := newHarvestMockSink()
	harvester := newTestHarvester(fetcher, extractor, sink, &harvestMockCheckpointStore{}, nil)

	report, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err, "one bad record never aborts the page")
	assert.Equal(t, 2, report.Schemas[0].RecordsWritten)
	assert.Len(t, sink.committed, 2)
	assert.NotContains(t, sink.committed, "oai:test:1")
}

func TestRun_UpsertFailureRollsBackPage(t *testing.T) {
	fetcher := &harvestMockFetcher{
		pages: map[string]*domain.Page{
			pageKey(domain.SchemaDublinCore, ""): {Records: makeRecords(0, 3)},
		},
	}
	sink := newHarvestMockSink()
	sink.upsertErrFor = "oai:test:2"
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, sink, &harvestMockCheckpointStore{}, nil)

	_, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.Error(t, err)
	assert.Empty(t, sink.committed, "a failed write aborts the whole page")
	assert.Equal(t, 1, sink.rollbacks)
}

func TestRun_TokenChainFollowsPages(t *testing.T) {
	fetcher := threePageFetcher(domain.SchemaDublinCore)
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, newHarvestMockSink(), &harvestMockCheckpointStore{}, nil)

	_, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err)

	require.Len(t, fetcher.requests, 3)
	assert.Empty(t, fetcher.requests[0].ResumptionToken)
	assert.Equal(t, "t1", fetcher.requests[1].ResumptionToken)
	assert.Equal(t, "t2", fetcher.requests[2].ResumptionToken)
}

func TestRun_MetricsCount(t *testing.T) {
	fetcher := threePageFetcher(domain.SchemaDublinCore)
	metrics := NewMetrics()
	harvester := newTestHarvester(fetcher, &harvestMockExtractor{}, newHarvestMockSink(), &harvestMockCheckpointStore{}, metrics)

	_, err := harvester.Run(context.Background(), baseOptions(domain.SchemaDublinCore))
	require.NoError(t, err)

	families, err := metrics.Registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				values[family.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(3), values["harvest_pages_total"])
	assert.Equal(t, float64(25), values["harvest_records_written_total"])
}
