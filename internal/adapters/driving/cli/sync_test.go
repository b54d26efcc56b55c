package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driving"
)

// mockHarvester implements driving.Harvester for testing.
type mockHarvester struct {
	opts   driving.RunOptions
	report *driving.RunReport
	err    error
}

func (m *mockHarvester) Run(_ context.Context, opts driving.RunOptions) (*driving.RunReport, error) {
	m.opts = opts
	if m.report == nil {
		m.report = &driving.RunReport{RunID: "test-run"}
	}
	return m.report, m.err
}

// setupSyncTest swaps the harvest stack factory for a mock and resets
// flag state afterwards.
func setupSyncTest(h driving.Harvester) func() {
	oldFactory := newHarvestStack
	newHarvestStack = func(_ syncSettings) (*harvestStack, error) {
		return &harvestStack{harvester: h, close: func() error { return nil }}, nil
	}
	return func() {
		newHarvestStack = oldFactory
		resetSyncFlags()
	}
}

func resetSyncFlags() {
	syncBaseURL = ""
	syncSchemas = nil
	syncFrom = ""
	syncUntil = ""
	syncSet = ""
	syncResume = false
	syncMaxPages = 0
	syncMaxRecords = 0
	syncCheckpointFile = ""
	syncDB = ""
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync", syncCmd.Use)
}

func TestSyncCmd_Short(t *testing.T) {
	assert.Equal(t, "Harvest records into the local database", syncCmd.Short)
}

func TestSyncCmd_AppliesDefaults(t *testing.T) {
	mock := &mockHarvester{}
	cleanup := setupSyncTest(mock)
	defer cleanup()

	out, err := executeCommand("sync", "--db", filepath.Join(t.TempDir(), "documents.db"))
	require.NoError(t, err)

	assert.Equal(t, defaultBaseURL, mock.opts.BaseURL)
	assert.Equal(t, defaultSchemas, mock.opts.Schemas)
	assert.Equal(t, defaultFrom, mock.opts.From)
	assert.False(t, mock.opts.Resume)
	assert.Zero(t, mock.opts.MaxPages)
	assert.Contains(t, out, "Done. Synced schemas: oai_dc, marcxml")
}

func TestSyncCmd_FlagsOverrideDefaults(t *testing.T) {
	mock := &mockHarvester{}
	cleanup := setupSyncTest(mock)
	defer cleanup()

	_, err := executeCommand("sync",
		"--db", filepath.Join(t.TempDir(), "documents.db"),
		"--base-url", "https://archive.example.org/oai2d",
		"--schema", "marcxml",
		"--from", "2025-03-01T00:00:00Z",
		"--until", "2025-04-01T00:00:00Z",
		"--set", "resolutions",
		"--resume",
		"--delay", "0s",
		"--max-pages", "2",
		"--max-records", "100",
	)
	require.NoError(t, err)

	assert.Equal(t, "https://archive.example.org/oai2d", mock.opts.BaseURL)
	assert.Equal(t, []string{"marcxml"}, mock.opts.Schemas)
	assert.Equal(t, "2025-03-01T00:00:00Z", mock.opts.From)
	assert.Equal(t, "2025-04-01T00:00:00Z", mock.opts.Until)
	assert.Equal(t, "resolutions", mock.opts.Set)
	assert.True(t, mock.opts.Resume)
	assert.Equal(t, time.Duration(0), mock.opts.Delay)
	assert.Equal(t, 2, mock.opts.MaxPages)
	assert.Equal(t, 100, mock.opts.MaxRecords)
}

func TestSyncCmd_RequiresDatabase(t *testing.T) {
	cleanup := setupSyncTest(&mockHarvester{})
	defer cleanup()

	_, err := executeCommand("sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDatabaseRequired)
}

func TestSyncCmd_ReportsSchemaOutcomes(t *testing.T) {
	token := "t1"
	mock := &mockHarvester{
		report: &driving.RunReport{
			RunID: "test-run",
			Schemas: []driving.SchemaReport{
				{Schema: "oai_dc", RecordsWritten: 25, PagesFetched: 3},
				{Schema: "marcxml", RecordsWritten: 10, PagesFetched: 1, ResumptionToken: &token},
			},
		},
	}
	cleanup := setupSyncTest(mock)
	defer cleanup()

	out, err := executeCommand("sync", "--db", filepath.Join(t.TempDir(), "documents.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "oai_dc: 25 records, 3 pages, exhausted")
	assert.Contains(t, out, "marcxml: 10 records, 1 pages, stopped (resumable)")
}

func TestSyncCmd_PropagatesHarvestError(t *testing.T) {
	protoErr := &domain.ProtocolError{Code: "badArgument", Message: "bad request"}
	mock := &mockHarvester{
		report: &driving.RunReport{
			RunID:   "test-run",
			Schemas: []driving.SchemaReport{{Schema: "oai_dc", Err: protoErr}},
		},
		err: protoErr,
	}
	cleanup := setupSyncTest(mock)
	defer cleanup()

	out, err := executeCommand("sync", "--db", filepath.Join(t.TempDir(), "documents.db"))
	require.Error(t, err)

	var gotProto *domain.ProtocolError
	assert.True(t, errors.As(err, &gotProto))
	assert.Contains(t, out, "oai_dc: 0 records, 0 pages, failed")
}
