package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/undltools/oaisync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentSink = (*Store)(nil)

// Store is the SQLite-backed document sink. One row per OAI identifier;
// the two schema variants upsert into disjoint column sets of the same
// row, so harvest order between them does not matter.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at dbPath and runs
// pending migrations. The parent directory is created when missing.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, domain.ErrDatabaseRequired
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL mode so a status query can run while a harvest writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_documents.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// BeginPage opens one transaction covering a page of upserts.
func (s *Store) BeginPage(ctx context.Context) (driven.PageWriter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &pageWriter{tx: tx}, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// pageWriter implements driven.PageWriter on one *sql.Tx.
type pageWriter struct {
	tx *sql.Tx
}

var _ driven.PageWriter = (*pageWriter)(nil)

const upsertDublinCoreSQL = `
	INSERT INTO documents (
		oai_identifier, recid, datestamp, deleted, metadata_prefix,
		source_set, source_url,
		document_symbol, title_primary, publication_date_primary,
		dc_title, dc_creator, dc_subject, dc_description, dc_publisher,
		dc_contributor, dc_date, dc_type, dc_format, dc_identifier,
		dc_source, dc_language, dc_relation, dc_coverage, dc_rights,
		last_harvested_at
	)
	VALUES (?, ?, ?, ?, 'oai_dc', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(oai_identifier) DO UPDATE SET
		recid = excluded.recid,
		datestamp = excluded.datestamp,
		deleted = excluded.deleted,
		source_set = excluded.source_set,
		source_url = excluded.source_url,
		document_symbol = excluded.document_symbol,
		title_primary = excluded.title_primary,
		publication_date_primary = excluded.publication_date_primary,
		dc_title = excluded.dc_title,
		dc_creator = excluded.dc_creator,
		dc_subject = excluded.dc_subject,
		dc_description = excluded.dc_description,
		dc_publisher = excluded.dc_publisher,
		dc_contributor = excluded.dc_contributor,
		dc_date = excluded.dc_date,
		dc_type = excluded.dc_type,
		dc_format = excluded.dc_format,
		dc_identifier = excluded.dc_identifier,
		dc_source = excluded.dc_source,
		dc_language = excluded.dc_language,
		dc_relation = excluded.dc_relation,
		dc_coverage = excluded.dc_coverage,
		dc_rights = excluded.dc_rights,
		metadata_prefix = 'oai_dc+marcxml',
		last_harvested_at = excluded.last_harvested_at
`

const upsertMarcSQL = `
	INSERT INTO documents (
		oai_identifier, recid, datestamp, deleted, metadata_prefix,
		source_set, source_url,
		marcxml_xml, marcxml_json,
		last_harvested_at
	)
	VALUES (?, ?, ?, ?, 'oai_dc+marcxml', ?, ?, ?, ?, ?)
	ON CONFLICT(oai_identifier) DO UPDATE SET
		recid = excluded.recid,
		datestamp = excluded.datestamp,
		deleted = excluded.deleted,
		source_set = excluded.source_set,
		source_url = excluded.source_url,
		metadata_prefix = 'oai_dc+marcxml',
		marcxml_xml = excluded.marcxml_xml,
		marcxml_json = excluded.marcxml_json,
		last_harvested_at = excluded.last_harvested_at
`

// UpsertDublinCore writes the flat-schema columns of a document row.
func (w *pageWriter) UpsertDublinCore(ctx context.Context, row *domain.DublinCoreRow) error {
	args := []any{
		row.Identifier,
		row.RecID,
		row.Datestamp,
		row.Deleted,
		nullString(row.Set),
		row.SourceURL,
		row.DocumentSymbol,
		row.TitlePrimary,
		row.DatePrimary,
	}
	for _, name := range domain.DublinCoreFields {
		values := row.Fields[name]
		if values == nil {
			values = []string{}
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("marshalling %s values: %w", name, err)
		}
		args = append(args, string(encoded))
	}
	args = append(args, time.Now().UTC())

	if _, err := w.tx.ExecContext(ctx, upsertDublinCoreSQL, args...); err != nil {
		return fmt.Errorf("upserting document %s: %w", row.Identifier, err)
	}
	return nil
}

// UpsertMarc writes the structured-schema columns of a document row.
func (w *pageWriter) UpsertMarc(ctx context.Context, row *domain.MarcRow) error {
	var marcJSON *string
	if row.Record != nil {
		encoded, err := json.Marshal(row.Record)
		if err != nil {
			return fmt.Errorf("marshalling marc record: %w", err)
		}
		s := string(encoded)
		marcJSON = &s
	}

	_, err := w.tx.ExecContext(ctx, upsertMarcSQL,
		row.Identifier,
		row.RecID,
		row.Datestamp,
		row.Deleted,
		nullString(row.Set),
		row.SourceURL,
		row.MetadataXML,
		marcJSON,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", row.Identifier, err)
	}
	return nil
}

// Commit makes the page durable.
func (w *pageWriter) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("committing page: %w", err)
	}
	return nil
}

// Rollback discards the page. Safe to call after Commit.
func (w *pageWriter) Rollback() error {
	if err := w.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back page: %w", err)
	}
	return nil
}

// nullString converts empty strings to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
