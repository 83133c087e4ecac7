package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // database/sql driver

	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/pkg/logger"
	"github.com/okian/internos/pkg/metrics"
)

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db           *sql.DB
	path         string
	maxOpenConns int
	busyTimeout  time.Duration
	logger       logger.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens (creating if needed) the database at path and migrates it.
func NewSQLStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		path:         path,
		maxOpenConns: 4,
		busyTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_txlock=immediate",
		path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(s.maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s.db = db

	for _, q := range migrations {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	s.logger.Info(ctx, "attempt store ready",
		logger.String("path", path),
		logger.Int("max_open_conns", s.maxOpenConns))
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// observe records latency; lookups that miss and status conflicts are not failures.
func (s *SQLStore) observe(op string, start time.Time, err *error) {
	failed := *err != nil && !errors.Is(*err, ErrNotFound) && !errors.Is(*err, ErrStatusConflict)
	metrics.RecordStoreQuery(op, float64(time.Since(start))/float64(time.Millisecond), failed)
}

func unixNano(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }

func (s *SQLStore) EnsureUser(ctx context.Context, handle string) (u model.User, err error) {
	defer s.observe("ensure_user", time.Now(), &err)

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return model.User{}, fmt.Errorf("%w: empty handle", ErrInvalidRecord)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users(handle, created_at) VALUES(?, ?) ON CONFLICT(handle) DO NOTHING`,
		handle, unixNano(time.Now())); err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.userByHandle(ctx, handle)
}

func (s *SQLStore) UserByHandle(ctx context.Context, handle string) (u model.User, err error) {
	defer s.observe("user_by_handle", time.Now(), &err)
	return s.userByHandle(ctx, strings.TrimSpace(handle))
}

func (s *SQLStore) userByHandle(ctx context.Context, handle string) (model.User, error) {
	var u model.User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, handle, created_at FROM users WHERE handle = ?`, handle).
		Scan(&u.ID, &u.Handle, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: user %q", ErrNotFound, handle)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromUnixNano(created)
	return u, nil
}

func (s *SQLStore) UpsertTicket(ctx context.Context, t model.Ticket) (_ model.Ticket, err error) {
	defer s.observe("upsert_ticket", time.Now(), &err)

	if t.Kind == "" || t.RepoURL == "" {
		return model.Ticket{}, fmt.Errorf("%w: ticket needs kind and repo_url", ErrInvalidRecord)
	}
	var rubricJSON sql.NullString
	if t.Weights != nil {
		b, err := json.Marshal(t.Weights)
		if err != nil {
			return model.Ticket{}, fmt.Errorf("encode ticket rubric: %w", err)
		}
		rubricJSON = sql.NullString{String: string(b), Valid: true}
	}
	limit := int64(t.TimeLimit / time.Second)

	if t.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO tickets(kind, title, repo_url, rubric_json, time_limit, description) VALUES(?, ?, ?, ?, ?, ?)`,
			t.Kind, t.Title, t.RepoURL, rubricJSON, limit, t.Description)
		if err != nil {
			return model.Ticket{}, fmt.Errorf("insert ticket: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return model.Ticket{}, fmt.Errorf("ticket id: %w", err)
		}
		return t, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tickets(id, kind, title, repo_url, rubric_json, time_limit, description)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			repo_url = excluded.repo_url,
			rubric_json = excluded.rubric_json,
			time_limit = excluded.time_limit,
			description = excluded.description`,
		t.ID, t.Kind, t.Title, t.RepoURL, rubricJSON, limit, t.Description)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("upsert ticket %d: %w", t.ID, err)
	}
	return t, nil
}

const ticketColumns = `id, kind, title, repo_url, rubric_json, time_limit, description`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (model.Ticket, error) {
	var t model.Ticket
	var rubricJSON sql.NullString
	var limit int64
	if err := row.Scan(&t.ID, &t.Kind, &t.Title, &t.RepoURL, &rubricJSON, &limit, &t.Description); err != nil {
		return model.Ticket{}, err
	}
	t.TimeLimit = time.Duration(limit) * time.Second
	if rubricJSON.Valid && rubricJSON.String != "" {
		var w rubric.Weights
		if err := json.Unmarshal([]byte(rubricJSON.String), &w); err != nil {
			return model.Ticket{}, fmt.Errorf("decode ticket %d rubric: %w", t.ID, err)
		}
		t.Weights = &w
	}
	return t, nil
}

func (s *SQLStore) Ticket(ctx context.Context, id int64) (t model.Ticket, err error) {
	defer s.observe("ticket", time.Now(), &err)

	t, err = scanTicket(s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, fmt.Errorf("%w: ticket %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("select ticket: %w", err)
	}
	return t, nil
}

func (s *SQLStore) Tickets(ctx context.Context) (out []model.Ticket, err error) {
	defer s.observe("tickets", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a model.Attempt) (_ model.Attempt, err error) {
	defer s.observe("create_attempt", time.Now(), &err)

	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = model.StatusInProgress
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts(user_id, ticket_id, started_at, status, repo_path) VALUES(?, ?, ?, ?, ?)`,
		a.UserID, a.TicketID, unixNano(a.StartedAt), string(a.Status), a.RepoPath)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return model.Attempt{}, fmt.Errorf("attempt id: %w", err)
	}
	a.StartedAt = fromUnixNano(unixNano(a.StartedAt))
	return a, nil
}

const attemptColumns = `id, user_id, ticket_id, started_at, finished_at, status, repo_path`

func scanAttempt(row rowScanner) (model.Attempt, error) {
	var a model.Attempt
	var started int64
	var finished sql.NullInt64
	var status string
	if err := row.Scan(&a.ID, &a.UserID, &a.TicketID, &started, &finished, &status, &a.RepoPath); err != nil {
		return model.Attempt{}, err
	}
	a.StartedAt = fromUnixNano(started)
	if finished.Valid {
		a.FinishedAt = fromUnixNano(finished.Int64)
	}
	a.Status = model.Status(status)
	return a, nil
}

func (s *SQLStore) Attempt(ctx context.Context, id int64) (a model.Attempt, err error) {
	defer s.observe("attempt", time.Now(), &err)

	a, err = scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attempt{}, fmt.Errorf("%w: attempt %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return a, nil
}

func (s *SQLStore) TransitionAttempt(ctx context.Context, id int64, from, to model.Status) (err error) {
	defer s.observe("transition_attempt", time.Now(), &err)

	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRecord, from, to)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update attempt status: %w", err)
	}
	return s.checkTransition(ctx, s.db, res, id, from)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkTransition explains a conditional update that touched no row.
func (s *SQLStore) checkTransition(ctx context.Context, q querier, res sql.Result, id int64, want model.Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var current string
	err = q.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: attempt %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("select attempt status: %w", err)
	}
	return fmt.Errorf("%w: attempt %d is %s, want %s", ErrStatusConflict, id, current, want)
}

func (s *SQLStore) FinalizeAttempt(ctx context.Context, id int64, finishedAt time.Time, ms []model.Metric, as []model.Artifact) (err error) {
	defer s.observe("finalize_attempt", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET status = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusGraded), unixNano(finishedAt), id, string(model.StatusSubmitted))
	if err != nil {
		return fmt.Errorf("mark graded: %w", err)
	}
	if err = s.checkTransition(ctx, tx, res, id, model.StatusSubmitted); err != nil {
		return err
	}

	metricStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics(attempt_id, key, value, extra, created_at) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare metric insert: %w", err)
	}
	defer metricStmt.Close()
	now := unixNano(finishedAt)
	for _, m := range ms {
		var extra sql.NullString
		if len(m.Extra) > 0 {
			b, mErr := json.Marshal(m.Extra)
			if mErr != nil {
				return fmt.Errorf("encode metric %s extra: %w", m.Key, mErr)
			}
			extra = sql.NullString{String: string(b), Valid: true}
		}
		if _, err = metricStmt.ExecContext(ctx, id, m.Key, m.Value, extra, now); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.Key, err)
		}
	}

	for _, a := range as {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO artifacts(attempt_id, kind, url, note) VALUES(?, ?, ?, ?)`,
			id, a.Kind, a.URL, a.Note); err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.Kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) Metrics(ctx context.Context, attemptID int64) (out []model.Metric, err error) {
	defer s.observe("metrics", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, key, value, extra, created_at FROM metrics WHERE attempt_id = ? ORDER BY id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("select metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Metric
		var extra sql.NullString
		var created int64
		if err := rows.Scan(&m.ID, &m.AttemptID, &m.Key, &m.Value, &extra, &created); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &m.Extra); err != nil {
				return nil, fmt.Errorf("decode metric %d extra: %w", m.ID, err)
			}
		}
		m.CreatedAt = fromUnixNano(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) Artifacts(ctx context.Context, attemptID int64) (out []model.Artifact, err error) {
	defer s.observe("artifacts", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, kind, url, note FROM artifacts WHERE attempt_id = ? ORDER BY id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("select artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.Kind, &a.URL, &a.Note); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) GradedAttempts(ctx context.Context, userID int64) (out []GradedAttempt, err error) {
	defer s.observe("graded_attempts", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.ticket_id, a.started_at, a.finished_at, a.status, a.repo_path, m.key, m.value
		FROM attempts a
		LEFT JOIN metrics m ON m.attempt_id = a.id AND m.key NOT LIKE 'score\_%' ESCAPE '\'
		WHERE a.user_id = ? AND a.status = ?
		ORDER BY a.id, m.id`, userID, string(model.StatusGraded))
	if err != nil {
		return nil, fmt.Errorf("select graded attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Attempt
		var started int64
		var finished sql.NullInt64
		var status string
		var key sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.UserID, &a.TicketID, &started, &finished, &status, &a.RepoPath, &key, &value); err != nil {
			return nil, fmt.Errorf("scan graded attempt: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].Attempt.ID != a.ID {
			a.StartedAt = fromUnixNano(started)
			if finished.Valid {
				a.FinishedAt = fromUnixNano(finished.Int64)
			}
			a.Status = model.Status(status)
			out = append(out, GradedAttempt{Attempt: a, Signals: rubric.Signals{}})
		}
		if key.Valid && value.Valid {
			out[len(out)-1].Signals[key.String] = value.Float64
		}
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) (_ model.Snapshot, err error) {
	defer s.observe("save_snapshot", time.Now(), &err)

	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = time.Now().UTC()
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO signals(user_id, snapshot_json, created_at) VALUES(?, ?, ?)`,
		snap.UserID, string(b), unixNano(snap.GeneratedAt))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot id: %w", err)
	}
	return snap, nil
}

func (s *SQLStore) Counts(ctx context.Context) (c Counts, err error) {
	defer s.observe("counts", time.Now(), &err)

	if err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM tickets)`).
		Scan(&c.Users, &c.Tickets); err != nil {
		return Counts{}, fmt.Errorf("count users and tickets: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM attempts GROUP BY status`)
	if err != nil {
		return Counts{}, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("scan attempt count: %w", err)
		}
		switch model.Status(status) {
		case model.StatusInProgress:
			c.InProgress = n
		case model.StatusSubmitted:
			c.Submitted = n
		case model.StatusGraded:
			c.Graded = n
		}
	}
	return c, rows.Err()
}
