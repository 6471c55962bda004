package llmcall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides access to call records in a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on db and ensures its table exists.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS llm_calls (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		temperature REAL,
		max_tokens INTEGER,
		state TEXT NOT NULL,
		reason TEXT NOT NULL,
		failure TEXT NOT NULL,
		prompt_chars INTEGER NOT NULL,
		response_chars INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create llm_calls table: %w", err)
	}
	return &Store{db: db}, nil
}

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	State   string
	Model   string
	After   *time.Time
	Before  *time.Time
	Success *bool
	Limit   int
	Offset  int
}

const selectColumns = `SELECT id, timestamp, latency_ms, provider, model, temperature, max_tokens,
	state, reason, failure, prompt_chars, response_chars, success, error FROM llm_calls`

// Record inserts call.
func (s *Store) Record(ctx context.Context, c *Call) error {
	var temp sql.NullFloat64
	if c.Temperature != nil {
		temp = sql.NullFloat64{Float64: *c.Temperature, Valid: true}
	}
	var maxTokens sql.NullInt64
	if c.MaxTokens != nil {
		maxTokens = sql.NullInt64{Int64: int64(*c.MaxTokens), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO llm_calls
		(id, timestamp, latency_ms, provider, model, temperature, max_tokens,
		 state, reason, failure, prompt_chars, response_chars, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Timestamp.UTC().Format(timeFormat), c.LatencyMs, c.Provider, c.Model,
		temp, maxTokens, c.State, c.Reason, c.Failure, c.PromptChars, c.ResponseChars,
		c.Success, c.Error)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// Get retrieves a single call by ID. It returns nil, nil when not found.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return c, nil
}

// List retrieves calls matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	var conditions []string
	var args []any

	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, filter.State)
	}
	if filter.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}
	if filter.After != nil {
		conditions = append(conditions, "timestamp > ?")
		args = append(args, filter.After.UTC().Format(timeFormat))
	}
	if filter.Before != nil {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.Before.UTC().Format(timeFormat))
	}

	query := selectColumns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}

// CountByState returns call counts grouped by state.
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM llm_calls GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*Call, error) {
	var (
		c         Call
		ts        string
		temp      sql.NullFloat64
		maxTokens sql.NullInt64
	)
	err := row.Scan(&c.ID, &ts, &c.LatencyMs, &c.Provider, &c.Model, &temp, &maxTokens,
		&c.State, &c.Reason, &c.Failure, &c.PromptChars, &c.ResponseChars, &c.Success, &c.Error)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(timeFormat, ts); err == nil {
		c.Timestamp = t
	}
	if temp.Valid {
		v := temp.Float64
		c.Temperature = &v
	}
	if maxTokens.Valid {
		v := int(maxTokens.Int64)
		c.MaxTokens = &v
	}
	return &c, nil
}
