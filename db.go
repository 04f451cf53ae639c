package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"convergence_worker/internal/experiment"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS convergence_runs (
  id UUID PRIMARY KEY,
  config JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS convergence_results (
  run_id UUID NOT NULL REFERENCES convergence_runs(id),
  size INTEGER NOT NULL,
  truth DOUBLE PRECISION NOT NULL,
  truth_time_ns BIGINT NOT NULL,
  estimator TEXT NOT NULL,
  distance DOUBLE PRECISION NOT NULL,
  total_time_ns DOUBLE PRECISION NOT NULL,
  per_resample_time_ns DOUBLE PRECISION NOT NULL,
  per_bag_time_ns DOUBLE PRECISION NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (run_id, size, estimator)
)`

const insertResultSQL = `
INSERT INTO convergence_results
  (run_id, size, truth, truth_time_ns, estimator, distance, total_time_ns, per_resample_time_ns, per_bag_time_ns)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`

// postgresDSNFromEnv builds a DSN from POSTGRES_* variables, falling back to
// DATABASE_URL. ok is false when neither is configured.
func postgresDSNFromEnv() (dsn string, ok bool) {
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, true
		}
		return "", false
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, dbname), true
}

// postgresSink stores each row as one record per estimator, tagged with the
// run ID.
type postgresSink struct {
	db    *sql.DB
	runID uuid.UUID
}

func openPostgresSink(dsn string, runID uuid.UUID, cfg experiment.Config) (*postgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect error: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("INSERT INTO convergence_runs (id, config) VALUES ($1, $2)", runID.String(), string(cfgJSON)); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &postgresSink{db: db, runID: runID}, nil
}

func resultInsertArgs(runID uuid.UUID, row experiment.Row) [][]any {
	args := make([][]any, 0, len(row.Results))
	for _, e := range row.Results {
		args = append(args, []any{
			runID.String(),
			row.Size,
			row.Truth,
			int64(row.TruthTime),
			e.Name,
			e.Distance,
			e.Total,
			e.PerResample,
			e.PerBag,
		})
	}
	return args
}

func (s *postgresSink) WriteRow(row experiment.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, args := range resultInsertArgs(s.runID, row) {
		if _, err := tx.Exec(insertResultSQL, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert convergence_result failed: %w", err)
		}
	}
	return tx.Commit()
}

func (s *postgresSink) Close() error {
	return s.db.Close()
}
