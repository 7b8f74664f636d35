// File path: internal/stats/store.go
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jbpark-dev/storesense/internal/common"
)

// ErrUnknownMerchant reports a store code with no precomputed metrics.
var ErrUnknownMerchant = errors.New("stats: unknown merchant")

// Merchant is one row of precomputed per-store metrics produced by the
// offline modeling pipeline.
type Merchant struct {
	StoreCode      string  `db:"store_code" json:"store_code"`
	StoreName      string  `db:"store_name" json:"store_name"`
	Industry       string  `db:"industry" json:"industry"`
	TradeArea      string  `db:"trade_area" json:"trade_area"`
	Cluster        int     `db:"cluster" json:"cluster"`
	Persona        string  `db:"persona" json:"persona"`
	RevisitRate    float64 `db:"revisit_rate" json:"revisit_rate"`
	LoyaltySummary string  `db:"loyalty_summary" json:"loyalty_summary"`
}

// Segment is one customer-segment share with its gap to the cluster mean.
type Segment struct {
	Segment    string `db:"segment" json:"segment"`
	StoreValue string `db:"store_value" json:"store_value"`
	Gap        string `db:"gap" json:"gap"`
}

// VisitFactor is one visit-mix component (walk-in, workplace, resident).
type VisitFactor struct {
	Factor     string `db:"factor" json:"factor"`
	StoreValue string `db:"store_value" json:"store_value"`
	Gap        string `db:"gap" json:"gap"`
}

// Diagnosis is one ranked weakness with its severity score out of 100.
type Diagnosis struct {
	Rank     int    `db:"rank" json:"rank"`
	Weakness string `db:"weakness" json:"weakness"`
	Severity int    `db:"severity" json:"severity"`
}

// Store reads precomputed merchant metrics from the SQLite database
// written by the offline pipeline.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS merchants (
	store_code      TEXT PRIMARY KEY,
	store_name      TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	trade_area      TEXT NOT NULL DEFAULT '',
	cluster         INTEGER NOT NULL DEFAULT 0,
	persona         TEXT NOT NULL DEFAULT '',
	revisit_rate    REAL NOT NULL DEFAULT 0,
	loyalty_summary TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS merchant_segments (
	store_code  TEXT NOT NULL REFERENCES merchants(store_code),
	segment     TEXT NOT NULL,
	store_value TEXT NOT NULL DEFAULT '',
	gap         TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS merchant_visit_mix (
	store_code  TEXT NOT NULL REFERENCES merchants(store_code),
	factor      TEXT NOT NULL,
	store_value TEXT NOT NULL DEFAULT '',
	gap         TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS merchant_diagnoses (
	store_code TEXT NOT NULL REFERENCES merchants(store_code),
	rank       INTEGER NOT NULL,
	weakness   TEXT NOT NULL,
	severity   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_segments_store ON merchant_segments(store_code);
CREATE INDEX IF NOT EXISTS idx_visit_mix_store ON merchant_visit_mix(store_code);
CREATE INDEX IF NOT EXISTS idx_diagnoses_store ON merchant_diagnoses(store_code);
`

// Open connects to the metrics database at path and ensures the schema
// exists. The connection pool stays small; reads are short and local.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := filepath.ToSlash(strings.TrimSpace(path)) + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("stats: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: migrate: %w", err)
	}
	common.Logger().Info("stats: metrics store ready", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Merchant fetches the base metrics row for a store code.
func (s *Store) Merchant(ctx context.Context, storeCode string) (*Merchant, error) {
	var m Merchant
	err := s.db.GetContext(ctx, &m,
		`SELECT store_code, store_name, industry, trade_area, cluster, persona,
		        revisit_rate, loyalty_summary
		 FROM merchants WHERE store_code = ?`, storeCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMerchant, storeCode)
	}
	if err != nil {
		return nil, fmt.Errorf("stats: merchant %s: %w", storeCode, err)
	}
	return &m, nil
}

// Segments lists the store's customer segments, largest gap first.
func (s *Store) Segments(ctx context.Context, storeCode string) ([]Segment, error) {
	var out []Segment
	err := s.db.SelectContext(ctx, &out,
		`SELECT segment, store_value, gap FROM merchant_segments
		 WHERE store_code = ? ORDER BY rowid`, storeCode)
	if err != nil {
		return nil, fmt.Errorf("stats: segments %s: %w", storeCode, err)
	}
	return out, nil
}

// VisitMix lists the store's visit-type composition.
func (s *Store) VisitMix(ctx context.Context, storeCode string) ([]VisitFactor, error) {
	var out []VisitFactor
	err := s.db.SelectContext(ctx, &out,
		`SELECT factor, store_value, gap FROM merchant_visit_mix
		 WHERE store_code = ? ORDER BY rowid`, storeCode)
	if err != nil {
		return nil, fmt.Errorf("stats: visit mix %s: %w", storeCode, err)
	}
	return out, nil
}

// Diagnoses lists the store's ranked weaknesses, most severe first.
func (s *Store) Diagnoses(ctx context.Context, storeCode string) ([]Diagnosis, error) {
	var out []Diagnosis
	err := s.db.SelectContext(ctx, &out,
		`SELECT rank, weakness, severity FROM merchant_diagnoses
		 WHERE store_code = ? ORDER BY rank`, storeCode)
	if err != nil {
		return nil, fmt.Errorf("stats: diagnoses %s: %w", storeCode, err)
	}
	return out, nil
}

// SeedMerchant inserts a merchant with its related rows. Used by the data
// load tooling and tests.
func (s *Store) SeedMerchant(ctx context.Context, m Merchant, segments []Segment, visits []VisitFactor, diagnoses []Diagnosis) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stats: begin seed: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO merchants
		 (store_code, store_name, industry, trade_area, cluster, persona, revisit_rate, loyalty_summary)
		 VALUES (:store_code, :store_name, :industry, :trade_area, :cluster, :persona, :revisit_rate, :loyalty_summary)`,
		m); err != nil {
		return fmt.Errorf("stats: seed merchant: %w", err)
	}
	for _, seg := range segments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO merchant_segments (store_code, segment, store_value, gap) VALUES (?, ?, ?, ?)`,
			m.StoreCode, seg.Segment, seg.StoreValue, seg.Gap); err != nil {
			return fmt.Errorf("stats: seed segment: %w", err)
		}
	}
	for _, visit := range visits {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO merchant_visit_mix (store_code, factor, store_value, gap) VALUES (?, ?, ?, ?)`,
			m.StoreCode, visit.Factor, visit.StoreValue, visit.Gap); err != nil {
			return fmt.Errorf("stats: seed visit factor: %w", err)
		}
	}
	for _, d := range diagnoses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO merchant_diagnoses (store_code, rank, weakness, severity) VALUES (?, ?, ?, ?)`,
			m.StoreCode, d.Rank, d.Weakness, d.Severity); err != nil {
			return fmt.Errorf("stats: seed diagnosis: %w", err)
		}
	}
	return tx.Commit()
}
