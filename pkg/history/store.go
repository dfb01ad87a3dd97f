// Package history persists finished focus sessions and the per-bucket
// estimates learned from them.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/estimate"
	"github.com/harrisonrobin/studyplan/pkg/model"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const dbFile = "history.db"

var ErrInvalidSession = errors.New("invalid session")

// Session is one finished block of focused work.
type Session struct {
	ID       int64
	CourseID string
	Category model.Category
	Minutes  int
	EndedAt  time.Time
}

func (s Session) Key() model.EstimateKey {
	return model.EstimateKey{CourseID: s.CourseID, Category: s.Category}
}

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// FileName is the default database file name inside the state directory.
func FileName() string { return dbFile }

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func validate(sess Session) error {
	if sess.Minutes <= 0 {
		return fmt.Errorf("%w: minutes must be positive, got %d", ErrInvalidSession, sess.Minutes)
	}
	if sess.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidSession)
	}
	return nil
}

// AddSession stores a finished session. EndedAt defaults to now.
func (s *Store) AddSession(ctx context.Context, sess Session) (Session, error) {
	if err := validate(sess); err != nil {
		return Session{}, err
	}
	return s.insertSession(ctx, s.db, sess)
}

// ended_at is stored as Unix nanoseconds so ORDER BY is chronological.
func (s *Store) insertSession(ctx context.Context, q querier, sess Session) (Session, error) {
	if sess.EndedAt.IsZero() {
		sess.EndedAt = s.now()
	}
	sess.EndedAt = sess.EndedAt.UTC()

	res, err := q.ExecContext(ctx,
		`INSERT INTO sessions(course_id, category, minutes, ended_at) VALUES(?,?,?,?)`,
		sess.CourseID, string(sess.Category), sess.Minutes, sess.EndedAt.UnixNano(),
	)
	if err != nil {
		return Session{}, err
	}
	sess.ID, err = res.LastInsertId()
	return sess, err
}

// Sessions returns every stored session, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	return sessions(ctx, s.db)
}

func sessions(ctx context.Context, q querier) ([]Session, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, course_id, category, minutes, ended_at FROM sessions ORDER BY ended_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess     Session
			category string
			endedAt  int64
		)
		if err := rows.Scan(&sess.ID, &sess.CourseID, &category, &sess.Minutes, &endedAt); err != nil {
			return nil, fmt.Errorf("session row: %w", err)
		}
		sess.Category = model.Category(category)
		sess.EndedAt = time.Unix(0, endedAt).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

// LoadEstimates returns the learned estimates keyed by bucket.
func (s *Store) LoadEstimates(ctx context.Context) (map[model.EstimateKey]float64, error) {
	return loadEstimates(ctx, s.db)
}

func loadEstimates(ctx context.Context, q querier) (map[model.EstimateKey]float64, error) {
	rows, err := q.QueryContext(ctx, `SELECT course_id, category, minutes FROM estimates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.EstimateKey]float64)
	for rows.Next() {
		var (
			course, category string
			minutes          float64
		)
		if err := rows.Scan(&course, &category, &minutes); err != nil {
			return nil, err
		}
		out[model.EstimateKey{CourseID: course, Category: model.Category(category)}] = minutes
	}
	return out, rows.Err()
}

// SaveEstimates replaces the stored estimates with learned.
func (s *Store) SaveEstimates(ctx context.Context, learned map[model.EstimateKey]float64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.saveEstimates(ctx, tx, learned)
	})
}

func (s *Store) saveEstimates(ctx context.Context, q querier, learned map[model.EstimateKey]float64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM estimates`); err != nil {
		return err
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	for k, v := range learned {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO estimates(course_id, category, minutes, updated_at) VALUES(?,?,?,?)`,
			k.CourseID, string(k.Category), v, stamp,
		); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a session and folds it into the learned estimates. Either
// both land or neither does.
func (s *Store) Record(ctx context.Context, sess Session, alpha float64) (Session, map[model.EstimateKey]float64, error) {
	if err := validate(sess); err != nil {
		return Session{}, nil, err
	}

	var (
		stored  Session
		learned map[model.EstimateKey]float64
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if stored, err = s.insertSession(ctx, tx, sess); err != nil {
			return err
		}
		current, err := loadEstimates(ctx, tx)
		if err != nil {
			return err
		}
		learned = estimate.Update(current, []model.Observation{{Key: stored.Key(), Minutes: stored.Minutes}}, alpha)
		return s.saveEstimates(ctx, tx, learned)
	})
	if err != nil {
		return Session{}, nil, fmt.Errorf("failed to record session: %w", err)
	}
	return stored, learned, nil
}

// Relearn rebuilds the estimates from every stored session, oldest first,
// and persists the result.
func (s *Store) Relearn(ctx context.Context, alpha float64) (map[model.EstimateKey]float64, error) {
	var learned map[model.EstimateKey]float64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		all, err := sessions(ctx, tx)
		if err != nil {
			return err
		}
		obs := make([]model.Observation, 0, len(all))
		for _, sess := range all {
			obs = append(obs, model.Observation{Key: sess.Key(), Minutes: sess.Minutes})
		}
		learned = estimate.Update(nil, obs, alpha)
		return s.saveEstimates(ctx, tx, learned)
	})
	if err != nil {
		return nil, err
	}
	return learned, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
