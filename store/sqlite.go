// Package store persists saved draw sequences to SQLite so a finished run
// can be summarized, plotted, or compared long after the chain ran. One row
// per saved draw; the assignment vector and cluster table ride along as JSON
// columns.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/sampler"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	name TEXT PRIMARY KEY,
	sampler TEXT NOT NULL,
	seed INTEGER NOT NULL,
	alpha REAL NOT NULL,
	mu0 REAL NOT NULL,
	tau1 REAL NOT NULL,
	tau2 REAL NOT NULL,
	burn_in INTEGER NOT NULL,
	save_count INTEGER NOT NULL,
	thinning INTEGER NOT NULL,
	study_ids_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS draws (
	run_name TEXT NOT NULL,
	draw_index INTEGER NOT NULL,
	sweep INTEGER NOT NULL,
	cluster_count INTEGER NOT NULL,
	base_prec REAL NOT NULL,
	log_like REAL NOT NULL,
	assignments_json TEXT NOT NULL,
	cluster_means_json TEXT NOT NULL,
	cluster_sizes_json TEXT NOT NULL,
	effects_json TEXT NOT NULL,
	PRIMARY KEY (run_name, draw_index)
);
`

// DB wraps the SQLite connection holding saved runs.
type DB struct {
	db *sql.DB
}

// RunRecord describes one stored run: everything needed to reproduce it
// (sampler, seed, hyperparameters, schedule) plus the study labels the draw
// assignment vectors are aligned to.
type RunRecord struct {
	Name      string
	Sampler   string
	Seed      int64
	Hyper     model.Hyperparameters
	Plan      model.Schedule
	StudyIDs  []string
	CreatedAt time.Time
}

// Open opens (or creates) the draw store at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not OPEN draw store %s", path)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "Could not CREATE schema in draw store %s", path)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// SaveRun stores the run record and its draws, replacing any previous run
// saved under the same name.
func (d *DB) SaveRun(rec *RunRecord, draws []*sampler.Draw) error {
	if rec == nil || len(rec.Name) < 1 {
		return errors.New("Run record must have a name")
	}
	if len(draws) < 1 {
		return errors.Errorf("Run %s has no draws to save", rec.Name)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	idsJSON, err := json.Marshal(rec.StudyIDs)
	if err != nil {
		return errors.Wrapf(err, "Could not encode study IDs for run %s", rec.Name)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrapf(err, "Could not start transaction for run %s", rec.Name)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs (
			name, sampler, seed,
			alpha, mu0, tau1, tau2,
			burn_in, save_count, thinning,
			study_ids_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Sampler, rec.Seed,
		rec.Hyper.Alpha, rec.Hyper.Mu0, rec.Hyper.Tau1, rec.Hyper.Tau2,
		rec.Plan.BurnIn, rec.Plan.SaveCount, rec.Plan.Thinning,
		string(idsJSON), rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "Could not WRITE run %s", rec.Name)
	}

	_, err = tx.Exec(`DELETE FROM draws WHERE run_name = ?`, rec.Name)
	if err != nil {
		return errors.Wrapf(err, "Could not clear old draws for run %s", rec.Name)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO draws (
			run_name, draw_index, sweep,
			cluster_count, base_prec, log_like,
			assignments_json, cluster_means_json, cluster_sizes_json, effects_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrapf(err, "Could not prepare draw insert for run %s", rec.Name)
	}
	defer stmt.Close()

	for _, dr := range draws {
		assignJSON, err := json.Marshal(dr.Assignments)
		if err != nil {
			return errors.Wrapf(err, "Could not encode draw %d", dr.Index)
		}
		meansJSON, err := json.Marshal(dr.ClusterMeans)
		if err != nil {
			return errors.Wrapf(err, "Could not encode draw %d", dr.Index)
		}
		sizesJSON, err := json.Marshal(dr.ClusterSizes)
		if err != nil {
			return errors.Wrapf(err, "Could not encode draw %d", dr.Index)
		}
		effectsJSON, err := json.Marshal(dr.Effects)
		if err != nil {
			return errors.Wrapf(err, "Could not encode draw %d", dr.Index)
		}

		_, err = stmt.Exec(
			rec.Name, dr.Index, dr.Sweep,
			dr.ClusterCount, dr.BasePrec, dr.LogLike,
			string(assignJSON), string(meansJSON), string(sizesJSON), string(effectsJSON),
		)
		if err != nil {
			return errors.Wrapf(err, "Could not WRITE draw %d for run %s", dr.Index, rec.Name)
		}
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrapf(err, "Could not commit run %s", rec.Name)
	}

	return nil
}

// LoadRun fetches the record stored under the given run name.
func (d *DB) LoadRun(name string) (*RunRecord, error) {
	rec := &RunRecord{Name: name}

	var idsJSON, createdAt string
	err := d.db.QueryRow(`
		SELECT sampler, seed,
			alpha, mu0, tau1, tau2,
			burn_in, save_count, thinning,
			study_ids_json, created_at
		FROM runs WHERE name = ?`, name).Scan(
		&rec.Sampler, &rec.Seed,
		&rec.Hyper.Alpha, &rec.Hyper.Mu0, &rec.Hyper.Tau1, &rec.Hyper.Tau2,
		&rec.Plan.BurnIn, &rec.Plan.SaveCount, &rec.Plan.Thinning,
		&idsJSON, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("No run named %s in the draw store", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ run %s", name)
	}

	err = json.Unmarshal([]byte(idsJSON), &rec.StudyIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not decode study IDs for run %s", name)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not decode creation time for run %s", name)
	}

	return rec, nil
}

// LoadDraws fetches a run's saved draws in draw order.
func (d *DB) LoadDraws(name string) ([]*sampler.Draw, error) {
	rows, err := d.db.Query(`
		SELECT draw_index, sweep,
			cluster_count, base_prec, log_like,
			assignments_json, cluster_means_json, cluster_sizes_json, effects_json
		FROM draws WHERE run_name = ? ORDER BY draw_index`, name)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ draws for run %s", name)
	}
	defer rows.Close()

	var draws []*sampler.Draw
	for rows.Next() {
		dr := &sampler.Draw{}
		var assignJSON, meansJSON, sizesJSON, effectsJSON string

		err = rows.Scan(
			&dr.Index, &dr.Sweep,
			&dr.ClusterCount, &dr.BasePrec, &dr.LogLike,
			&assignJSON, &meansJSON, &sizesJSON, &effectsJSON,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not READ a draw for run %s", name)
		}

		err = json.Unmarshal([]byte(assignJSON), &dr.Assignments)
		if err == nil {
			err = json.Unmarshal([]byte(meansJSON), &dr.ClusterMeans)
		}
		if err == nil {
			err = json.Unmarshal([]byte(sizesJSON), &dr.ClusterSizes)
		}
		if err == nil {
			err = json.Unmarshal([]byte(effectsJSON), &dr.Effects)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Could not decode draw %d for run %s", dr.Index, name)
		}

		draws = append(draws, dr)
	}

	err = rows.Err()
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ draws for run %s", name)
	}

	if len(draws) < 1 {
		return nil, errors.Errorf("No draws stored for run %s", name)
	}

	return draws, nil
}

// ListRuns returns the names of all stored runs in alphabetical order.
func (d *DB) ListRuns() ([]string, error) {
	rows, err := d.db.Query(`SELECT name FROM runs ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "Could not LIST runs")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, errors.Wrap(err, "Could not LIST runs")
		}
		names = append(names, name)
	}

	err = rows.Err()
	if err != nil {
		return nil, errors.Wrap(err, "Could not LIST runs")
	}

	return names, nil
}
