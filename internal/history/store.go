// Package history records scan reports in a local sqlite database so that
// consecutive scans can be compared.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a scan ID is unknown.
var ErrNotFound = errors.New("scan not found")

// Scan is one recorded report header.
type Scan struct {
	ID          string
	Provider    string
	Account     string
	GeneratedAt time.Time
	Summary     models.Summary
}

// Store is a sqlite-backed scan history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// sqlite serialises writers; one connection also keeps :memory: stable.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history %s: %w", path, err)
	}
	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialise history %s: %w", path, err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores report and all its findings in one transaction.
func (s *Store) Record(ctx context.Context, report *models.AuditReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := report.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scans (id, provider, account, generated_at, total_findings, pass, warn, fail, unknown, rule_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ReportID, report.Provider, report.Account, report.GeneratedAt.UnixNano(),
		sum.TotalFindings, sum.Pass, sum.Warn, sum.Fail, sum.Unknown, sum.RuleErrors,
	)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", report.ReportID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (scan_id, seq, finding_id, rule_id, severity, status, region, resource, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare findings: %w", err)
	}
	defer stmt.Close()

	for i, f := range report.Findings {
		_, err := stmt.ExecContext(ctx, report.ReportID, i, f.ID, f.RuleID, string(f.Severity),
			int(f.Status), f.Region, f.Resource, f.Message)
		if err != nil {
			return fmt.Errorf("insert finding %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// ListScans returns up to limit scans of provider, newest first. An empty
// provider lists every provider.
func (s *Store) ListScans(ctx context.Context, provider string, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, account, generated_at, total_findings, pass, warn, fail, unknown, rule_errors
		FROM scans
		WHERE ? = '' OR provider = ?
		ORDER BY generated_at DESC, id
		LIMIT ?`, provider, provider, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		sc, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Previous returns the newest scan of the same provider and account
// recorded before scan id.
func (s *Store) Previous(ctx context.Context, id string) (*Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.provider, p.account, p.generated_at, p.total_findings, p.pass, p.warn, p.fail, p.unknown, p.rule_errors
		FROM scans c
		JOIN scans p ON p.provider = c.provider AND p.account = c.account AND p.generated_at < c.generated_at
		WHERE c.id = ?
		ORDER BY p.generated_at DESC
		LIMIT 1`, id)
	sc, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// Findings returns the findings of scan id in report order.
func (s *Store) Findings(ctx context.Context, id string) ([]models.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, rule_id, severity, status, region, resource, message
		FROM findings WHERE scan_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query findings of %s: %w", id, err)
	}
	defer rows.Close()

	var out []models.Finding
	for rows.Next() {
		var f models.Finding
		var sev string
		var status int
		if err := rows.Scan(&f.ID, &f.RuleID, &sev, &status, &f.Region, &f.Resource, &f.Message); err != nil {
			return nil, fmt.Errorf("scan finding row: %w", err)
		}
		f.Severity = models.Severity(sev)
		f.Status = models.Status(status)
		out = append(out, f)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(r rowScanner) (Scan, error) {
	var sc Scan
	var ts int64
	err := r.Scan(&sc.ID, &sc.Provider, &sc.Account, &ts,
		&sc.Summary.TotalFindings, &sc.Summary.Pass, &sc.Summary.Warn,
		&sc.Summary.Fail, &sc.Summary.Unknown, &sc.Summary.RuleErrors)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sc, err
		}
		return sc, fmt.Errorf("scan row: %w", err)
	}
	sc.GeneratedAt = time.Unix(0, ts).UTC()
	return sc, nil
}
