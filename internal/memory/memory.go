// Package memory persists the record of what has already been documented
// and decides whether an entity is eligible for documentation right now.
package memory

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

// Store is the single-writer documentation memory. Readers (the dashboard)
// may open the same file concurrently; the busy timeout keeps them from
// evicting the daemon. Uniqueness of (code_hash, doc_type) is logical, not
// enforced by a constraint, so exactly one process may write.
type Store struct {
	db *sql.DB
}

// Stats summarizes documented records.
type Stats struct {
	Total     int
	ByRepo    map[string]int
	Last7Days int
}

// Open opens or creates the store at dbPath and runs schema migration.
// Use ":memory:" in tests.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(10000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate memory store: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documented_snippets (
		id TEXT PRIMARY KEY,
		source_repo TEXT NOT NULL,
		source_file TEXT NOT NULL,
		function_name TEXT,
		class_name TEXT,
		code_hash TEXT NOT NULL,
		documented_at TEXT NOT NULL,
		snippet_path TEXT NOT NULL,
		git_commit TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_code_hash ON documented_snippets(code_hash);
	CREATE INDEX IF NOT EXISTS idx_repo_file ON documented_snippets(source_repo, source_file);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// One-shot forward migration: older databases predate the doc_type column.
	hasDocType, err := s.columnExists("documented_snippets", "doc_type")
	if err != nil {
		return err
	}
	if !hasDocType {
		if _, err := s.db.Exec(
			`ALTER TABLE documented_snippets ADD COLUMN doc_type TEXT NOT NULL DEFAULT 'function_doc'`,
		); err != nil {
			return fmt.Errorf("add doc_type column: %w", err)
		}
	}
	_, err = s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_entity_doctype
		 ON documented_snippets(source_file, function_name, class_name, doc_type)`,
	)
	return err
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// HashCode returns the deterministic hash used for exact-duplicate detection.
func HashCode(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// ShouldDocument reports whether the snippet is eligible for docType now.
// Identical source under the same flavor blocks absolutely; a changed
// version of the same entity is blocked only within the cooldown window.
func (s *Store) ShouldDocument(ctx context.Context, snippet *model.CodeSnippet, docType model.DocType, redocumentAfterDays int) (bool, error) {
	hash := HashCode(snippet.Source)

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documented_snippets WHERE code_hash = ? AND doc_type = ?`,
		hash, string(docType),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query code hash: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	var last string
	err = s.db.QueryRowContext(ctx,
		`SELECT documented_at FROM documented_snippets
		 WHERE source_file = ? AND function_name = ? AND class_name = ? AND doc_type = ?
		 ORDER BY documented_at DESC LIMIT 1`,
		snippet.FilePath, snippet.FunctionName, snippet.ClassName, string(docType),
	).Scan(&last)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query entity cooldown: %w", err)
	}

	documentedAt, err := time.Parse(time.RFC3339Nano, last)
	if err != nil {
		return false, fmt.Errorf("parse documented_at %q: %w", last, err)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -redocumentAfterDays)
	return documentedAt.Before(cutoff), nil
}

// RecordDocumentation inserts a new documented record. Called exactly once
// per successful commit; no idempotence is provided.
func (s *Store) RecordDocumentation(ctx context.Context, snippet *model.CodeSnippet, snippetPath, gitCommit string, docType model.DocType) (*model.DocumentedRecord, error) {
	rec := &model.DocumentedRecord{
		ID:           uuid.NewString(),
		SourceRepo:   snippet.Repo,
		SourceFile:   snippet.FilePath,
		FunctionName: snippet.FunctionName,
		ClassName:    snippet.ClassName,
		CodeHash:     HashCode(snippet.Source),
		DocumentedAt: time.Now().UTC(),
		SnippetPath:  snippetPath,
		GitCommit:    gitCommit,
		DocType:      docType,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documented_snippets
		 (id, source_repo, source_file, function_name, class_name, code_hash, documented_at, snippet_path, git_commit, doc_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceRepo, rec.SourceFile, rec.FunctionName, rec.ClassName,
		rec.CodeHash, rec.DocumentedAt.Format(time.RFC3339Nano), rec.SnippetPath,
		rec.GitCommit, string(rec.DocType),
	)
	if err != nil {
		return nil, fmt.Errorf("insert documented record: %w", err)
	}
	return rec, nil
}

// Get loads one record by id, mainly for tests and the stats command.
func (s *Store) Get(ctx context.Context, id string) (*model.DocumentedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_repo, source_file, function_name, class_name, code_hash,
		        documented_at, snippet_path, git_commit, doc_type
		 FROM documented_snippets WHERE id = ?`, id)

	var rec model.DocumentedRecord
	var at, docType string
	var fn, cn, commit sql.NullString
	if err := row.Scan(&rec.ID, &rec.SourceRepo, &rec.SourceFile, &fn, &cn,
		&rec.CodeHash, &at, &rec.SnippetPath, &commit, &docType); err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	rec.FunctionName = fn.String
	rec.ClassName = cn.String
	rec.GitCommit = commit.String
	rec.DocType = model.DocType(docType)
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("parse documented_at: %w", err)
	}
	rec.DocumentedAt = ts
	return &rec, nil
}

// GetStats aggregates documented record counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByRepo: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documented_snippets`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_repo, COUNT(1) FROM documented_snippets GROUP BY source_repo`)
	if err != nil {
		return nil, fmt.Errorf("count by repo: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var repo string
		var n int
		if err := rows.Scan(&repo, &n); err != nil {
			return nil, err
		}
		stats.ByRepo[repo] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339Nano)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documented_snippets WHERE documented_at > ?`,
		weekAgo).Scan(&stats.Last7Days); err != nil {
		return nil, fmt.Errorf("count last 7 days: %w", err)
	}
	return stats, nil
}
