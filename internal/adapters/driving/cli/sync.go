package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	checkpointfile "github.com/undltools/oaisync/internal/adapters/driven/checkpoint/file"
	"github.com/undltools/oaisync/internal/adapters/driven/storage/sqlite"
	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driving"
	"github.com/undltools/oaisync/internal/core/services"
	"github.com/undltools/oaisync/internal/oai"
)

// Built-in harvest defaults, overridable via flags or the config file.
const (
	defaultBaseURL = "https://digitallibrary.un.org/oai2d"
	defaultFrom    = "2025-01-01T00:00:00Z"
)

var defaultSchemas = []string{domain.SchemaDublinCore, domain.SchemaMarc}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Harvest records into the local database",
	Long: `Harvests paged ListRecords responses for each requested metadata schema
and upserts them into the local database. Each schema keeps its own
checkpoint entry; pass --resume to continue from the stored token.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var (
	syncBaseURL        string
	syncSchemas        []string
	syncFrom           string
	syncUntil          string
	syncSet            string
	syncResume         bool
	syncTimeout        time.Duration
	syncDelay          time.Duration
	syncMaxPages       int
	syncMaxRecords     int
	syncCheckpointFile string
	syncDB             string
)

func init() {
	syncCmd.Flags().StringVar(&syncBaseURL, "base-url", "", "OAI-PMH endpoint (default "+defaultBaseURL+")")
	syncCmd.Flags().StringSliceVar(&syncSchemas, "schema", nil, "Metadata schemas to harvest (default oai_dc,marcxml)")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "Harvest window start, inclusive UTC (default "+defaultFrom+")")
	syncCmd.Flags().StringVar(&syncUntil, "until", "", "Harvest window end, inclusive UTC")
	syncCmd.Flags().StringVar(&syncSet, "set", "", "Restrict the harvest to a set")
	syncCmd.Flags().BoolVar(&syncResume, "resume", false, "Continue from the stored checkpoint token")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", oai.DefaultTimeout, "Per-fetch HTTP timeout")
	syncCmd.Flags().DurationVar(&syncDelay, "delay", 500*time.Millisecond, "Pause between page fetches")
	syncCmd.Flags().IntVar(&syncMaxPages, "max-pages", 0, "Per-schema page budget (0 = unbounded)")
	syncCmd.Flags().IntVar(&syncMaxRecords, "max-records", 0, "Per-schema record budget (0 = unbounded)")
	syncCmd.Flags().StringVar(&syncCheckpointFile, "checkpoint-file", "", "Checkpoint file location")
	syncCmd.Flags().StringVar(&syncDB, "db", "", "SQLite database location")

	rootCmd.AddCommand(syncCmd)
}

// syncSettings are the fully resolved parameters of one harvest.
type syncSettings struct {
	BaseURL        string
	Schemas        []string
	From           string
	Until          string
	Set            string
	Resume         bool
	Timeout        time.Duration
	Delay          time.Duration
	MaxPages       int
	MaxRecords     int
	CheckpointPath string
	DBPath         string
}

func resolveSyncSettings() syncSettings {
	return syncSettings{
		BaseURL:        resolveString(syncBaseURL, "harvest.base_url", defaultBaseURL),
		Schemas:        resolveStringSlice(syncSchemas, "harvest.schemas", defaultSchemas),
		From:           resolveString(syncFrom, "harvest.from", defaultFrom),
		Until:          resolveString(syncUntil, "harvest.until", ""),
		Set:            resolveString(syncSet, "harvest.set", ""),
		Resume:         syncResume,
		Timeout:        syncTimeout,
		Delay:          syncDelay,
		MaxPages:       resolveInt(syncMaxPages, "harvest.max_pages"),
		MaxRecords:     resolveInt(syncMaxRecords, "harvest.max_records"),
		CheckpointPath: resolveString(syncCheckpointFile, "harvest.checkpoint_file", defaultCheckpointPath()),
		DBPath:         resolveString(syncDB, "storage.db_path", ""),
	}
}

// defaultCheckpointPath places the checkpoint file next to the config.
func defaultCheckpointPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oaisync-checkpoints.json"
	}
	return filepath.Join(home, ".oaisync", "checkpoints.json")
}

// harvestStack bundles a harvester with the resources it owns.
type harvestStack struct {
	harvester driving.Harvester
	close     func() error
}

// newHarvestStack builds the production harvest stack. Package variable
// so tests can substitute a mock.
var newHarvestStack = func(settings syncSettings) (*harvestStack, error) {
	store, err := sqlite.NewStore(settings.DBPath)
	if err != nil {
		return nil, err
	}

	harvester := services.NewHarvester(
		oai.NewClient(settings.Timeout),
		oai.NewExtractor(),
		store,
		checkpointfile.NewStore(settings.CheckpointPath),
		services.NewMetrics(),
	)

	return &harvestStack{harvester: harvester, close: store.Close}, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	settings := resolveSyncSettings()
	if settings.DBPath == "" {
		return fmt.Errorf("%w: pass --db or set storage.db_path in the config", domain.ErrDatabaseRequired)
	}

	stack, err := newHarvestStack(settings)
	if err != nil {
		return fmt.Errorf("initialising harvest: %w", err)
	}
	defer stack.close()

	report, err := stack.harvester.Run(cmd.Context(), driving.RunOptions{
		BaseURL:    settings.BaseURL,
		Schemas:    settings.Schemas,
		From:       settings.From,
		Until:      settings.Until,
		Set:        settings.Set,
		Resume:     settings.Resume,
		Delay:      settings.Delay,
		MaxPages:   settings.MaxPages,
		MaxRecords: settings.MaxRecords,
	})

	if report != nil {
		for _, schemaReport := range report.Schemas {
			outcome := "exhausted"
			if schemaReport.Err != nil {
				outcome = "failed"
			} else if schemaReport.ResumptionToken != nil {
				outcome = "stopped (resumable)"
			}
			cmd.Printf("%s: %d records, %d pages, %s\n",
				schemaReport.Schema, schemaReport.RecordsWritten, schemaReport.PagesFetched, outcome)
		}
	}
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	cmd.Printf("Done. Synced schemas: %s\n", strings.Join(settings.Schemas, ", "))
	return nil
}
