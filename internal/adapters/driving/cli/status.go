package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	checkpointfile "github.com/undltools/oaisync/internal/adapters/driven/checkpoint/file"
	"github.com/undltools/oaisync/internal/adapters/driven/storage/sqlite"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show harvest checkpoints and stored document count",
	Long: `Prints the per-schema checkpoint entries (resume token, progress and any
recorded error) and, when a database is configured, the number of stored
documents.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var (
	statusCheckpointFile string
	statusDB             string
)

func init() {
	statusCmd.Flags().StringVar(&statusCheckpointFile, "checkpoint-file", "", "Checkpoint file location")
	statusCmd.Flags().StringVar(&statusDB, "db", "", "SQLite database location")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	checkpointPath := resolveString(statusCheckpointFile, "harvest.checkpoint_file", defaultCheckpointPath())
	dbPath := resolveString(statusDB, "storage.db_path", "")

	checkpoints, err := checkpointfile.NewStore(checkpointPath).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading checkpoints: %w", err)
	}

	if len(checkpoints) == 0 {
		cmd.Printf("No checkpoints at %s\n", checkpointPath)
	} else {
		schemas := make([]string, 0, len(checkpoints))
		for schema := range checkpoints {
			schemas = append(schemas, schema)
		}
		sort.Strings(schemas)

		cmd.Printf("Checkpoints (%s):\n\n", checkpointPath)
		for _, schema := range schemas {
			entry := checkpoints[schema]
			cmd.Printf("  %s\n", schema)
			cmd.Printf("    updated: %s\n", entry.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
			if entry.ResumptionToken != nil {
				cmd.Printf("    resume token: %s\n", *entry.ResumptionToken)
			} else {
				cmd.Println("    resume token: none (exhausted)")
			}
			cmd.Printf("    progress: %d records over %d pages\n", entry.RecordsWritten, entry.PagesFetched)
			if entry.From != "" || entry.Until != "" {
				cmd.Printf("    window: %s .. %s\n", entry.From, entry.Until)
			}
			if entry.Set != "" {
				cmd.Printf("    set: %s\n", entry.Set)
			}
			if entry.Error != nil {
				cmd.Printf("    last error: [%s] %s\n", entry.Error.Code, entry.Error.Message)
			}
			cmd.Println()
		}
	}

	if dbPath == "" {
		return nil
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		cmd.Printf("Database %s does not exist yet\n", dbPath)
		return nil
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	count, err := store.CountDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	cmd.Printf("Documents stored: %d (%s)\n", count, dbPath)
	return nil
}
