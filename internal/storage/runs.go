package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ruleforge/internal/aggregate"
	rferrors "ruleforge/internal/errors"
)

// Run is one recorded generate invocation.
type Run struct {
	ID             string            `json:"id" yaml:"id" toml:"id"`
	StartedAt      time.Time         `json:"startedAt" yaml:"startedAt" toml:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt" yaml:"finishedAt" toml:"finishedAt"`
	Wordlist       string            `json:"wordlist" yaml:"wordlist" toml:"wordlist"`
	WordlistDigest string            `json:"wordlistDigest" yaml:"wordlistDigest" toml:"wordlistDigest"`
	Method         string            `json:"method" yaml:"method" toml:"method"`
	Params         map[string]string `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	Words          int               `json:"words" yaml:"words" toml:"words"`
	Chunks         int               `json:"chunks" yaml:"chunks" toml:"chunks"`
	Clusters       int               `json:"clusters" yaml:"clusters" toml:"clusters"`
	Pairs          int               `json:"pairs" yaml:"pairs" toml:"pairs"`
	DeadEnds       int               `json:"deadEnds" yaml:"deadEnds" toml:"deadEnds"`
	RuleFile       string            `json:"ruleFile" yaml:"ruleFile" toml:"ruleFile"`
	// Rules is only populated by Get.
	Rules []aggregate.Entry `json:"rules,omitempty" yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRepository provides access to the runs and run_rules tables
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts run and its ranked rules in one transaction. An empty ID is
// replaced by a fresh UUID.
func (r *RunRepository) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	params := "{}"
	if len(run.Params) > 0 {
		data, err := json.Marshal(run.Params)
		if err != nil {
			return rferrors.New(rferrors.StorageError, "cannot encode run parameters", err)
		}
		params = string(data)
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (
				id, started_at, finished_at, wordlist, wordlist_digest, method,
				params_json, words, chunks, clusters, pairs, dead_ends, rule_file
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
			run.Wordlist,
			run.WordlistDigest,
			run.Method,
			params,
			run.Words,
			run.Chunks,
			run.Clusters,
			run.Pairs,
			run.DeadEnds,
			run.RuleFile,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO run_rules (run_id, rank, rule, count) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for rank, e := range run.Rules {
			if _, err := stmt.Exec(run.ID, rank+1, []byte(e.Rule), e.Count); err != nil {
				return fmt.Errorf("failed to insert rule %d: %w", rank+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return rferrors.New(rferrors.StorageError, "cannot record run", err)
	}

	r.db.logger.Debug("Recorded run", "id", run.ID, "rules", len(run.Rules))
	return nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, rferrors.New(rferrors.StorageError, "cannot list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, rferrors.New(rferrors.StorageError, "cannot read run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, rferrors.New(rferrors.StorageError, "cannot list runs", err)
	}
	return runs, nil
}

// Get returns the run whose ID equals or uniquely starts with id, including
// its ranked rules. It returns nil, nil when nothing matches.
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, rferrors.New(rferrors.StorageError, "cannot query run", err)
	}

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, rferrors.New(rferrors.StorageError, "cannot read run", err)
		}
		matches = append(matches, run)
	}
	_ = rows.Close()

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
	default:
		exact := false
		for _, m := range matches {
			if m.ID == id {
				matches, exact = []*Run{m}, true
				break
			}
		}
		if !exact {
			return nil, rferrors.Newf(rferrors.StorageError, "run id prefix %q is ambiguous", id)
		}
	}

	run := matches[0]
	rules, err := r.rules(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Rules = rules
	return run, nil
}

// Delete removes a run and its rules. It reports whether the run existed.
func (r *RunRepository) Delete(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM run_rules WHERE run_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, rferrors.New(rferrors.StorageError, "cannot delete run", err)
	}
	return n > 0, nil
}

// Prune deletes all but the keep newest runs and returns how many went.
func (r *RunRepository) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	var n int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		const stale = `SELECT id FROM runs ORDER BY started_at DESC, id LIMIT -1 OFFSET ?`
		if _, err := tx.Exec(`DELETE FROM run_rules WHERE run_id IN (`+stale+`)`, keep); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, rferrors.New(rferrors.StorageError, "cannot prune runs", err)
	}
	if n > 0 {
		r.db.logger.Debug("Pruned runs", "deleted", n, "kept", keep)
	}
	return int(n), nil
}

func (r *RunRepository) rules(ctx context.Context, runID string) ([]aggregate.Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT rule, count FROM run_rules WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, rferrors.New(rferrors.StorageError, "cannot load run rules", err)
	}
	defer rows.Close()

	var entries []aggregate.Entry
	for rows.Next() {
		var rule []byte
		var count int
		if err := rows.Scan(&rule, &count); err != nil {
			return nil, rferrors.New(rferrors.StorageError, "cannot read run rule", err)
		}
		entries = append(entries, aggregate.Entry{Rule: string(rule), Count: count})
	}
	return entries, rows.Err()
}

const runColumns = `id, started_at, finished_at, wordlist, wordlist_digest, method,
	params_json, words, chunks, clusters, pairs, dead_ends, rule_file`

func scanRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var started, finished, params string

	err := rows.Scan(
		&run.ID,
		&started,
		&finished,
		&run.Wordlist,
		&run.WordlistDigest,
		&run.Method,
		&params,
		&run.Words,
		&run.Chunks,
		&run.Clusters,
		&run.Pairs,
		&run.DeadEnds,
		&run.RuleFile,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("invalid started_at format: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("invalid finished_at format: %w", err)
	}
	if params != "" && params != "{}" {
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("invalid params_json: %w", err)
		}
	}
	return &run, nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
