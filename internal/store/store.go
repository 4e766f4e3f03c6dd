// Package store persists analysis runs to a SQLite database so grouped counts
// and ranked coefficients can be compared across runs.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/crashlens/internal/analysis"
	"github.com/KaramelBytes/crashlens/internal/incident"
	"github.com/KaramelBytes/crashlens/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a SQLite connection.
type Store struct {
	conn *sql.DB
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID        string
	Dataset   string
	CreatedAt time.Time
	Input     int
	Kept      int
	Groups    int
	RSquared  *float64
	FitError  string
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps writes serialized.
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	logging.Debug().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates missing tables from the embedded schema.sql.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveReport writes the run header, grouped counts, tallies and ranked
// coefficients of rep in one transaction.
func (s *Store) SaveReport(ctx context.Context, runID, dataset string, createdAt time.Time, rep *analysis.Report) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		modelRows, modelParams sql.NullInt64
		r2, adj, fp            sql.NullFloat64
		fitErr                 sql.NullString
	)
	if m := rep.Model; m != nil {
		modelRows = sql.NullInt64{Int64: int64(m.Rows), Valid: true}
		modelParams = sql.NullInt64{Int64: int64(m.Params), Valid: true}
		r2 = finite(m.RSquared)
		adj = finite(m.AdjRSquared)
		fp = finite(m.FPValue)
	}
	if rep.FitError != "" {
		fitErr = sql.NullString{String: rep.FitError, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, dataset, created_at_utc, input_rows, kept_rows, bad_date,
			missing_time, missing_borough, dense, fit_rows, model_rows,
			model_params, r_squared, adj_r_squared, f_p_value, fit_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, dataset, createdAt.UTC().Format(time.RFC3339),
		rep.Stats.Input, rep.Stats.Kept, rep.Stats.BadDate,
		rep.Stats.MissingTime, rep.Stats.MissingBorough, boolInt(rep.Dense), rep.FitRows,
		modelRows, modelParams, r2, adj, fp, fitErr,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	groupStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grouped_counts (
			run_id, year, borough, season, time_of_day, is_weekend, is_summer, month, incidents
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare grouped counts: %w", err)
	}
	defer groupStmt.Close()
	for _, g := range rep.Groups {
		if _, err := groupStmt.ExecContext(ctx, runID, g.Year, g.Borough, string(g.Season),
			string(g.TimeOfDay), boolInt(g.IsWeekend), boolInt(g.IsSummer), g.Month, g.Count); err != nil {
			return fmt.Errorf("insert grouped count %s: %w", g.GroupKey, err)
		}
	}

	tallyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tallies (run_id, dimension, position, value, incidents) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tallies: %w", err)
	}
	defer tallyStmt.Close()
	for _, t := range rep.Tallies {
		for i, c := range t.Counts {
			if _, err := tallyStmt.ExecContext(ctx, runID, string(t.Dimension), i, c.Value, c.Count); err != nil {
				return fmt.Errorf("insert tally %s=%s: %w", t.Dimension, c.Value, err)
			}
		}
	}

	if rep.Model != nil {
		coefStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO coefficients (
				run_id, position, term, factor, level, estimate, std_error,
				ci_lower, ci_upper, p_value, significant
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare coefficients: %w", err)
		}
		defer coefStmt.Close()
		for i, c := range rep.Model.Ranked() {
			if _, err := coefStmt.ExecContext(ctx, runID, i+1, c.Term, string(c.Factor), c.Level,
				c.Estimate, c.StdError, c.Lower, c.Upper, c.PValue, boolInt(c.Significant)); err != nil {
				return fmt.Errorf("insert coefficient %s: %w", c.Term, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	logging.Debug().Str("run_id", runID).Int("groups", len(rep.Groups)).Msg("run saved")
	return nil
}

// LoadGroupedCounts returns the grouped-count table of a saved run, in key order.
func (s *Store) LoadGroupedCounts(ctx context.Context, runID string) ([]analysis.GroupCount, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT year, borough, season, time_of_day, is_weekend, is_summer, month, incidents
		FROM grouped_counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query grouped counts: %w", err)
	}
	defer rows.Close()
	var out []analysis.GroupCount
	for rows.Next() {
		var (
			g               analysis.GroupCount
			season, tod     string
			weekend, summer int
		)
		if err := rows.Scan(&g.Year, &g.Borough, &season, &tod, &weekend, &summer, &g.Month, &g.Count); err != nil {
			return nil, fmt.Errorf("scan grouped count: %w", err)
		}
		g.Season = incident.Season(season)
		g.TimeOfDay = incident.TimeOfDay(tod)
		g.IsWeekend = weekend != 0
		g.IsSummer = summer != 0
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read grouped counts: %w", err)
	}
	analysis.SortGroupCounts(out)
	return out, nil
}

// LoadCoefficients returns the coefficients of a saved run in rank order.
func (s *Store) LoadCoefficients(ctx context.Context, runID string) ([]analysis.Coefficient, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT term, factor, level, estimate, std_error, ci_lower, ci_upper, p_value, significant
		FROM coefficients WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query coefficients: %w", err)
	}
	defer rows.Close()
	var out []analysis.Coefficient
	for rows.Next() {
		var (
			c      analysis.Coefficient
			factor string
			sig    int
		)
		if err := rows.Scan(&c.Term, &factor, &c.Level, &c.Estimate, &c.StdError, &c.Lower, &c.Upper, &c.PValue, &sig); err != nil {
			return nil, fmt.Errorf("scan coefficient: %w", err)
		}
		c.Factor = analysis.Term(factor)
		c.Significant = sig != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRuns returns saved runs, newest first. An empty dataset lists all.
func (s *Store) ListRuns(ctx context.Context, dataset string) ([]RunSummary, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT r.run_id, r.dataset, r.created_at_utc, r.input_rows, r.kept_rows,
			(SELECT COUNT(*) FROM grouped_counts g WHERE g.run_id = r.run_id),
			r.r_squared, COALESCE(r.fit_error, '')
		FROM runs r
		WHERE ? = '' OR r.dataset = ?
		ORDER BY r.created_at_utc DESC, r.run_id`, dataset, dataset)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			created string
			r2      sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Dataset, &created, &r.Input, &r.Kept, &r.Groups, &r2, &r.FitError); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			r.CreatedAt = t
		}
		if r2.Valid {
			v := r2.Float64
			r.RSquared = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func finite(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
