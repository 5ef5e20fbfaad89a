// Package history records finished training runs in a SQLite database so that
// experiments can be compared after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	created_at     TIMESTAMP NOT NULL,
	data_path      TEXT NOT NULL,
	target         TEXT NOT NULL,
	seed           INTEGER,
	folds          INTEGER NOT NULL,
	fold_selection TEXT NOT NULL,
	trees          INTEGER NOT NULL,
	test_auc       REAL NOT NULL,
	train_auc      REAL NOT NULL,
	cv_mean        REAL NOT NULL,
	cv_std         REAL NOT NULL,
	params_json    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_features (
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	rank          INTEGER NOT NULL,
	feature       TEXT NOT NULL,
	shap_healthy  REAL NOT NULL,
	shap_abnormal REAL NOT NULL,
	weight        REAL NOT NULL,
	coverage      REAL NOT NULL,
	gain          REAL NOT NULL,
	PRIMARY KEY (run_id, feature)
);
`

// Run is one row of the runs table.
type Run struct {
	ID            string
	CreatedAt     time.Time
	DataPath      string
	Target        string
	Seed          *uint64
	Folds         int
	FoldSelection string
	Trees         int
	TestAUC       float64
	TrainAUC      float64
	CVMean        float64
	CVStd         float64
	Params        map[string]any
}

// Feature is one ranked row of a run's feature table.
type Feature struct {
	Feature      string
	SHAPHealthy  float64
	SHAPAbnormal float64
	Weight       float64
	Coverage     float64
	Gain         float64
}

// Store is a run history backed by a SQLite file.
type Store struct {
	db     *sql.DB
	path   string
	logger log.Logger
}

// Open creates or opens the history database at path. Use ":memory:" for a
// throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history %s", path)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to configure history %s", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to initialize history schema in %s", path)
	}
	return &Store{db: db, path: path, logger: log.GetLoggerWithName("history")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Record stores a run and its feature table in one transaction. Recording
// the same run id twice replaces the earlier entry.
func (s *Store) Record(ctx context.Context, run Run, features []Feature) (err error) {
	if run.ID == "" {
		return errors.NewValueError("Store.Record", "run id is empty")
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return errors.Wrap(err, "failed to encode run parameters")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	var seed sql.NullInt64
	if run.Seed != nil {
		seed = sql.NullInt64{Int64: int64(*run.Seed), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin history transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{`DELETE FROM run_features WHERE run_id = ?`, `DELETE FROM runs WHERE run_id = ?`} {
		if _, err = tx.ExecContext(ctx, q, run.ID); err != nil {
			return errors.Wrapf(err, "failed to replace run %s", run.ID)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, data_path, target, seed, folds, fold_selection,
			trees, test_auc, train_auc, cv_mean, cv_std, params_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), run.DataPath, run.Target, seed, run.Folds, run.FoldSelection,
		run.Trees, run.TestAUC, run.TrainAUC, run.CVMean, run.CVStd, string(params))
	if err != nil {
		return errors.Wrapf(err, "failed to insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_features (run_id, rank, feature, shap_healthy, shap_abnormal, weight, coverage, gain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare feature insert")
	}
	defer stmt.Close()
	for i, f := range features {
		if _, err = stmt.ExecContext(ctx, run.ID, i, f.Feature, f.SHAPHealthy, f.SHAPAbnormal, f.Weight, f.Coverage, f.Gain); err != nil {
			return errors.Wrapf(err, "failed to insert feature %s", f.Feature)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit history transaction")
	}
	s.logger.Debug("run recorded", log.RunIDKey, run.ID, log.FeaturesKey, len(features))
	return nil
}

// List returns the most recent runs first. A limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, created_at, data_path, target, seed, folds, fold_selection,
		trees, test_auc, train_auc, cv_mean, cv_std, params_json
		FROM runs ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to list runs")
}

// Get returns one run. An unknown id yields a DataError.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, created_at, data_path, target, seed, folds, fold_selection,
		trees, test_auc, train_auc, cv_mean, cv_std, params_json
		FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, errors.NewDataErrorf("Store.Get", "run_id", "no run %q in %s", id, s.path)
	}
	return run, err
}

// Features returns the feature table of a run in its recorded order.
func (s *Store) Features(ctx context.Context, id string) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT feature, shap_healthy, shap_abnormal, weight, coverage, gain
		FROM run_features WHERE run_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read features of run %s", id)
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.Feature, &f.SHAPHealthy, &f.SHAPAbnormal, &f.Weight, &f.Coverage, &f.Gain); err != nil {
			return nil, errors.Wrapf(err, "failed to read features of run %s", id)
		}
		out = append(out, f)
	}
	return out, errors.Wrapf(rows.Err(), "failed to read features of run %s", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run    Run
		seed   sql.NullInt64
		params string
	)
	err := sc.Scan(&run.ID, &run.CreatedAt, &run.DataPath, &run.Target, &seed, &run.Folds, &run.FoldSelection,
		&run.Trees, &run.TestAUC, &run.TrainAUC, &run.CVMean, &run.CVStd, &params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "failed to read run")
	}
	if seed.Valid {
		v := uint64(seed.Int64)
		run.Seed = &v
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return Run{}, errors.Wrapf(err, "failed to decode parameters of run %s", run.ID)
	}
	return run, nil
}
