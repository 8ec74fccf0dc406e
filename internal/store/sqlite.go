package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/sp/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// marshalList encodes a slice as JSON text, defaulting to "[]".
func marshalList(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Tasks ---

func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = newULID()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, deadline, importance, estimated_hours, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Deadline, boolToInt(t.Importance),
		t.EstimatedHours, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t := &models.Task{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, deadline, importance, estimated_hours, status, created_at, updated_at
		FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Deadline, &t.Importance, &t.EstimatedHours, &status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.Status = models.TaskStatus(status)
	return t, nil
}

func (s *SQLiteStore) FindTaskByPrefix(ctx context.Context, prefix string) (*models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tasks WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("task not found: %s", prefix)
	case 1:
		return s.GetTask(ctx, ids[0])
	default:
		return nil, fmt.Errorf("ambiguous task id prefix: %s", prefix)
	}
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskListFilter) ([]*models.Task, error) {
	query := `SELECT id, title, description, deadline, importance, estimated_hours, status, created_at, updated_at FROM tasks`
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DueBy != "" {
		conditions = append(conditions, "deadline <= ?")
		args = append(args, filter.DueBy)
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += ` ORDER BY
		CASE status WHEN 'pending' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'completed' THEN 2 ELSE 3 END,
		importance DESC, deadline, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{}
		var status string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Deadline, &t.Importance, &t.EstimatedHours, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = models.TaskStatus(status)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, deadline=?, importance=?, estimated_hours=?, status=?, updated_at=?
		WHERE id=?`,
		t.Title, t.Description, t.Deadline, boolToInt(t.Importance),
		t.EstimatedHours, string(t.Status), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", t.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// --- Commitments ---

func (s *SQLiteStore) CreateCommitment(ctx context.Context, c *models.Commitment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	if c.Type == "" {
		c.Type = models.CommitmentTypeOther
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	modified, err := json.Marshal(c.ModifiedOccurrences)
	if err != nil || string(modified) == "null" {
		modified = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO commitments (id, title, start_time, end_time, type, recurring, days_of_week, specific_dates, deleted_occurrences, modified_occurrences, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.StartTime, c.EndTime, string(c.Type), boolToInt(c.Recurring),
		marshalList(c.DaysOfWeek), marshalList(c.SpecificDates), marshalList(c.DeletedOccurrences),
		string(modified), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create commitment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCommitment(ctx context.Context, id string) (*models.Commitment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, start_time, end_time, type, recurring, days_of_week, specific_dates, deleted_occurrences, modified_occurrences, created_at, updated_at
		FROM commitments WHERE id = ?`, id)
	c, err := scanCommitment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("commitment not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get commitment: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCommitments(ctx context.Context) ([]*models.Commitment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, type, recurring, days_of_week, specific_dates, deleted_occurrences, modified_occurrences, created_at, updated_at
		FROM commitments ORDER BY start_time, title`)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var commitments []*models.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

// scanCommitment decodes one commitment row, unpacking the JSON columns.
func scanCommitment(scan func(dest ...any) error) (*models.Commitment, error) {
	c := &models.Commitment{}
	var ctype, daysJSON, datesJSON, deletedJSON, modifiedJSON string
	err := scan(&c.ID, &c.Title, &c.StartTime, &c.EndTime, &ctype, &c.Recurring,
		&daysJSON, &datesJSON, &deletedJSON, &modifiedJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = models.CommitmentType(ctype)
	_ = json.Unmarshal([]byte(daysJSON), &c.DaysOfWeek)
	_ = json.Unmarshal([]byte(datesJSON), &c.SpecificDates)
	_ = json.Unmarshal([]byte(deletedJSON), &c.DeletedOccurrences)
	_ = json.Unmarshal([]byte(modifiedJSON), &c.ModifiedOccurrences)
	return c, nil
}

func (s *SQLiteStore) UpdateCommitment(ctx context.Context, c *models.Commitment) error {
	c.UpdatedAt = time.Now().UTC()

	modified, err := json.Marshal(c.ModifiedOccurrences)
	if err != nil || string(modified) == "null" {
		modified = []byte("{}")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET title=?, start_time=?, end_time=?, type=?, recurring=?, days_of_week=?, specific_dates=?, deleted_occurrences=?, modified_occurrences=?, updated_at=?
		WHERE id=?`,
		c.Title, c.StartTime, c.EndTime, string(c.Type), boolToInt(c.Recurring),
		marshalList(c.DaysOfWeek), marshalList(c.SpecificDates), marshalList(c.DeletedOccurrences),
		string(modified), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update commitment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("commitment not found: %s", c.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteCommitment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM commitments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete commitment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("commitment not found: %s", id)
	}
	return nil
}

// --- Plans ---

func (s *SQLiteStore) GetPlan(ctx context.Context, date string) (*models.Plan, error) {
	p := &models.Plan{}
	err := s.db.QueryRowContext(ctx,
		`SELECT date, total_study_hours, available_hours FROM plans WHERE date = ?`, date,
	).Scan(&p.Date, &p.TotalStudyHours, &p.AvailableHours)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no plan for date: %s", date)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	sessions, err := s.listSessions(ctx, date)
	if err != nil {
		return nil, err
	}
	p.Sessions = sessions
	return p, nil
}

func (s *SQLiteStore) ListPlans(ctx context.Context) (map[string]*models.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, total_study_hours, available_hours FROM plans ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	plans := make(map[string]*models.Plan)
	for rows.Next() {
		p := &models.Plan{}
		if err := rows.Scan(&p.Date, &p.TotalStudyHours, &p.AvailableHours); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans[p.Date] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for date, p := range plans {
		sessions, err := s.listSessions(ctx, date)
		if err != nil {
			return nil, err
		}
		p.Sessions = sessions
	}
	return plans, nil
}

func (s *SQLiteStore) listSessions(ctx context.Context, date string) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, start_time, end_time, allocated_hours, session_number, status, done, actual_hours, completed_at, original_time, original_date, rescheduled_at, is_manual_override
		FROM sessions WHERE plan_date = ? ORDER BY position`, date)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.Session
	for rows.Next() {
		sess := &models.Session{}
		var status string
		var completedAt, rescheduledAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.TaskID, &sess.StartTime, &sess.EndTime,
			&sess.AllocatedHours, &sess.SessionNumber, &status, &sess.Done,
			&sess.ActualHours, &completedAt, &sess.OriginalTime, &sess.OriginalDate,
			&rescheduledAt, &sess.IsManualOverride); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Status = models.SessionStatus(status)
		if completedAt.Valid {
			sess.CompletedAt = &completedAt.Time
		}
		if rescheduledAt.Valid {
			sess.RescheduledAt = &rescheduledAt.Time
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SavePlan upserts one plan and replaces its sessions.
func (s *SQLiteStore) SavePlan(ctx context.Context, p *models.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := savePlanTx(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReplaceAllPlans swaps the entire stored plan set for the given one in a
// single transaction. The engine returns full plan sets, so persistence
// is a wholesale replace rather than a diff.
func (s *SQLiteStore) ReplaceAllPlans(ctx context.Context, plans map[string]*models.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM plans"); err != nil {
		return fmt.Errorf("clear plans: %w", err)
	}

	dates := make([]string, 0, len(plans))
	for d := range plans {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if err := savePlanTx(ctx, tx, plans[date]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func savePlanTx(ctx context.Context, tx *sql.Tx, p *models.Plan) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO plans (date, total_study_hours, available_hours) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET total_study_hours=excluded.total_study_hours, available_hours=excluded.available_hours`,
		p.Date, p.TotalStudyHours, p.AvailableHours,
	)
	if err != nil {
		return fmt.Errorf("save plan %s: %w", p.Date, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE plan_date = ?", p.Date); err != nil {
		return fmt.Errorf("clear plan sessions %s: %w", p.Date, err)
	}

	for i, sess := range p.Sessions {
		if sess.ID == "" {
			sess.ID = newULID()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, plan_date, task_id, start_time, end_time, allocated_hours, session_number, status, done, actual_hours, completed_at, original_time, original_date, rescheduled_at, is_manual_override, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, p.Date, sess.TaskID, sess.StartTime, sess.EndTime,
			sess.AllocatedHours, sess.SessionNumber, string(sess.Status),
			boolToInt(sess.Done), sess.ActualHours, sess.CompletedAt,
			sess.OriginalTime, sess.OriginalDate, sess.RescheduledAt,
			boolToInt(sess.IsManualOverride), i,
		)
		if err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID, err)
		}
	}
	return nil
}

// --- Settings ---

// GetSettings returns the stored settings, or the defaults when nothing
// has been saved yet.
func (s *SQLiteStore) GetSettings(ctx context.Context) (models.Settings, error) {
	st := models.Settings{}
	var workDaysJSON, mode string
	err := s.db.QueryRowContext(ctx,
		`SELECT daily_available_hours, work_days, buffer_days, min_session_length, buffer_between_sessions, study_window_start_hour, study_window_end_hour, study_plan_mode
		FROM settings WHERE id = 1`,
	).Scan(&st.DailyAvailableHours, &workDaysJSON, &st.BufferDays, &st.MinSessionLength,
		&st.BufferTimeBetweenSessions, &st.StudyWindowStartHour, &st.StudyWindowEndHour, &mode)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return st, fmt.Errorf("get settings: %w", err)
	}
	st.StudyPlanMode = models.PlanMode(mode)
	_ = json.Unmarshal([]byte(workDaysJSON), &st.WorkDays)
	return st, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, st models.Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, daily_available_hours, work_days, buffer_days, min_session_length, buffer_between_sessions, study_window_start_hour, study_window_end_hour, study_plan_mode, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			daily_available_hours=excluded.daily_available_hours,
			work_days=excluded.work_days,
			buffer_days=excluded.buffer_days,
			min_session_length=excluded.min_session_length,
			buffer_between_sessions=excluded.buffer_between_sessions,
			study_window_start_hour=excluded.study_window_start_hour,
			study_window_end_hour=excluded.study_window_end_hour,
			study_plan_mode=excluded.study_plan_mode,
			updated_at=excluded.updated_at`,
		st.DailyAvailableHours, marshalList(st.WorkDays), st.BufferDays, st.MinSessionLength,
		st.BufferTimeBetweenSessions, st.StudyWindowStartHour, st.StudyWindowEndHour,
		string(st.StudyPlanMode), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
