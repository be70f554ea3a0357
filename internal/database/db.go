package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jgoulah/gridflex/pkg/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an analysis id is unknown
var ErrNotFound = errors.New("analysis not found")

// Fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single writer keeps sqlite from returning SQLITE_BUSY under the dashboard
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, now: time.Now}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		company TEXT NOT NULL,
		k INTEGER NOT NULL,
		workbook TEXT NOT NULL,
		sheet TEXT NOT NULL,
		median REAL NOT NULL,
		mad REAL NOT NULL,
		scaled_mad REAL NOT NULL,
		lower_bound REAL NOT NULL,
		upper_bound REAL NOT NULL,
		adjusted_mean REAL NOT NULL,
		flexibility_pct REAL NOT NULL,
		in_band INTEGER NOT NULL,
		dropped INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(company, k, workbook, sheet, created_at)
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_company ON analyses(company);
	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_published ON analyses(published);
	CREATE TABLE IF NOT EXISTS analysis_months (
		analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		month TEXT NOT NULL,
		consumption REAL NOT NULL,
		PRIMARY KEY(analysis_id, month)
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveAnalysis stores an analysis with its monthly series. A missing ID or
// CreatedAt is filled in, and the stored copy is returned.
func (db *DB) SaveAnalysis(a models.Analysis) (models.Analysis, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = db.now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.Published = false

	tx, err := db.conn.Begin()
	if err != nil {
		return a, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO analyses (id, company, k, workbook, sheet, median, mad, scaled_mad,
		lower_bound, upper_bound, adjusted_mean, flexibility_pct, in_band, dropped, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	b := a.Band
	if _, err := tx.Exec(query, a.ID, a.Company, b.K, a.Workbook, a.Sheet, b.Median, b.MAD, b.ScaledMAD,
		b.Lower, b.Upper, b.AdjustedMean, b.FlexibilityPct, b.InBand, a.Dropped,
		a.CreatedAt.Format(timeLayout)); err != nil {
		return a, fmt.Errorf("inserting analysis: %w", err)
	}

	for _, m := range a.Months {
		if _, err := tx.Exec(`INSERT INTO analysis_months (analysis_id, month, consumption) VALUES (?, ?, ?)`,
			a.ID, m.Month.Label(), m.Consumption); err != nil {
			return a, fmt.Errorf("inserting month %s: %w", m.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return a, fmt.Errorf("committing analysis: %w", err)
	}
	return a, nil
}

const selectAnalysis = `
	SELECT id, company, k, workbook, sheet, median, mad, scaled_mad, lower_bound, upper_bound,
		adjusted_mean, flexibility_pct, in_band, dropped, created_at, published
	FROM analyses
	`

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (models.Analysis, error) {
	var a models.Analysis
	var createdAt string
	b := &a.Band

	if err := row.Scan(&a.ID, &a.Company, &b.K, &a.Workbook, &a.Sheet, &b.Median, &b.MAD, &b.ScaledMAD,
		&b.Lower, &b.Upper, &b.AdjustedMean, &b.FlexibilityPct, &b.InBand, &a.Dropped,
		&createdAt, &a.Published); err != nil {
		return a, err
	}

	var err error
	a.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return a, fmt.Errorf("parsing created_at: %w", err)
	}
	return a, nil
}

// GetAnalysis retrieves one analysis with its months
func (db *DB) GetAnalysis(id string) (*models.Analysis, error) {
	a, err := scanAnalysis(db.conn.QueryRow(selectAnalysis+`WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying analysis: %w", err)
	}

	if a.Months, err = db.months(a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnalyses retrieves analyses for a company, newest first. An empty
// company lists every company. Months are not loaded.
func (db *DB) ListAnalyses(company string) ([]models.Analysis, error) {
	query := selectAnalysis + `WHERE (? = '' OR company = ?) ORDER BY created_at DESC`
	return db.list(query, company, company)
}

// ListUnpublished retrieves analyses not yet published, oldest first
func (db *DB) ListUnpublished() ([]models.Analysis, error) {
	analyses, err := db.list(selectAnalysis + `WHERE published = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished analyses: %w", err)
	}
	for i := range analyses {
		if analyses[i].Months, err = db.months(analyses[i].ID); err != nil {
			return nil, err
		}
	}
	return analyses, nil
}

// MarkPublished marks an analysis as published
func (db *DB) MarkPublished(id string) error {
	res, err := db.conn.Exec(`UPDATE analyses SET published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking analysis as published: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) list(query string, args ...any) ([]models.Analysis, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var results []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, a)
	}

	return results, rows.Err()
}

func (db *DB) months(id string) ([]models.MonthlyAggregate, error) {
	rows, err := db.conn.Query(`SELECT month, consumption FROM analysis_months WHERE analysis_id = ? ORDER BY month`, id)
	if err != nil {
		return nil, fmt.Errorf("querying months: %w", err)
	}
	defer rows.Close()

	var results []models.MonthlyAggregate
	for rows.Next() {
		var label string
		var m models.MonthlyAggregate
		if err := rows.Scan(&label, &m.Consumption); err != nil {
			return nil, fmt.Errorf("scanning month: %w", err)
		}
		if m.Month, err = models.ParseMonth(label); err != nil {
			return nil, err
		}
		results = append(results, m)
	}

	return results, rows.Err()
}
