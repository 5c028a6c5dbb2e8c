package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	// ARCHITECTURAL DISCOVERY: Import SQLite driver but only reference in connection string
	_ "github.com/mattn/go-sqlite3"

	dbconfig "pollcast/pkg/database"
	"pollcast/pkg/types"
)

// Store is the sqlite archive of ended polls. It implements interfaces.Archive.
type Store struct {
	db           *sql.DB
	config       *dbconfig.Config
	logger       *slog.Logger
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	retryDelay   time.Duration
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // TECHNICAL: Protect closed status
}

// writeOperation represents a database write operation
type writeOperation struct {
	ctx       context.Context
	operation func(context.Context, *sql.DB) error
	result    chan error
}

// Open creates the database file if needed, applies migrations and starts the writer
func Open(config *dbconfig.Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// FUNCTIONAL DISCOVERY: Connection pool configuration critical for concurrent reads
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	if err := dbconfig.NewMigrationManager(db, dbconfig.Migrations()).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	if err := dbconfig.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive schema invalid: %w", err)
	}

	store := &Store{
		db:           db,
		config:       config,
		logger:       logger,
		writeChannel: make(chan writeOperation, config.WriteBuffer),
		retryDelay:   5 * time.Second,
		shutdown:     make(chan struct{}),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	store.wg.Add(1)
	go store.writeLoop()

	logger.Info("poll archive opened", "path", config.DatabasePath)
	return store, nil
}

// writeLoop processes all write operations in a single goroutine
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			// FUNCTIONAL DISCOVERY: Retry exactly once unless the caller gave up
			err := op.operation(op.ctx, s.db)
			if err != nil && op.ctx.Err() == nil {
				s.logger.Warn("archive write failed, retrying", "delay", s.retryDelay, "error", err)
				select {
				case <-time.After(s.retryDelay):
					err = op.operation(op.ctx, s.db)
				case <-op.ctx.Done():
				case <-s.shutdown:
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (s *Store) executeWrite(ctx context.Context, operation func(context.Context, *sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeChannel <- writeOperation{ctx: ctx, operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return ErrStoreClosed
	}

	select {
	case err := <-result:
		return err
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// Record stores an ended poll and its final answers atomically
func (s *Store) Record(ctx context.Context, record *types.PollRecord) error {
	if record == nil || record.Poll == nil {
		return errors.New("archive record requires a poll")
	}

	optionsJSON, err := json.Marshal(record.Poll.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	var answers types.Tally
	if record.Results != nil {
		answers = record.Results.Answers
	}

	endedAt := time.Now()
	if record.Poll.EndedAt != nil {
		endedAt = *record.Poll.EndedAt
	}

	return s.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }() // TECHNICAL: Always rollback unless commit succeeds

		// Re-recording a poll replaces its answers
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE poll_id = ?`, record.Poll.ID); err != nil {
			return fmt.Errorf("failed to clear answers: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO polls (id, question, options, duration, started_at, ended_at, ended_by, total_answers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			record.Poll.ID,
			record.Poll.Question,
			string(optionsJSON),
			record.Poll.Duration,
			record.Poll.CreatedAt,
			endedAt,
			record.EndedBy,
			len(answers),
		)
		if err != nil {
			return fmt.Errorf("failed to insert poll: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO answers (poll_id, student_id, student_name, answer, submitted_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare answer insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for studentID, answer := range answers {
			if _, err := stmt.ExecContext(ctx, record.Poll.ID, studentID, answer.StudentName, answer.Answer, answer.SubmittedAt); err != nil {
				return fmt.Errorf("failed to insert answer: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit poll archive: %w", err)
		}
		return nil
	})
}

// ListPolls returns archived polls newest first
// ARCHITECTURAL DISCOVERY: Read operations can be concurrent - no need for writeChannel
func (s *Store) ListPolls(ctx context.Context, limit int) ([]*types.PollRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, options, duration, started_at, ended_at, ended_by
		FROM polls
		ORDER BY ended_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}

	var records []*types.PollRecord
	for rows.Next() {
		record, err := scanPoll(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating poll rows: %w", err)
	}
	_ = rows.Close()

	for _, record := range records {
		if err := s.loadResults(ctx, record); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// GetPoll returns one archived poll with its answers
func (s *Store) GetPoll(ctx context.Context, pollID int64) (*types.PollRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, options, duration, started_at, ended_at, ended_by
		FROM polls
		WHERE id = ?
	`, pollID)

	record, err := scanPoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}

	if err := s.loadResults(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPoll(row rowScanner) (*types.PollRecord, error) {
	var poll types.Poll
	var optionsJSON string
	var endedAt time.Time
	var endedBy string

	if err := row.Scan(&poll.ID, &poll.Question, &optionsJSON, &poll.Duration, &poll.CreatedAt, &endedAt, &endedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan poll row: %w", err)
	}

	// TECHNICAL DISCOVERY: JSON deserialization restores the option slice
	if err := json.Unmarshal([]byte(optionsJSON), &poll.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	poll.EndedAt = &endedAt

	return &types.PollRecord{Poll: &poll, EndedBy: endedBy}, nil
}

// loadResults rebuilds the final results from stored answers
func (s *Store) loadResults(ctx context.Context, record *types.PollRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, student_name, answer, submitted_at
		FROM answers
		WHERE poll_id = ?
	`, record.Poll.ID)
	if err != nil {
		return fmt.Errorf("failed to query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tally := make(types.Tally)
	for rows.Next() {
		answer := &types.Answer{PollID: record.Poll.ID}
		if err := rows.Scan(&answer.StudentID, &answer.StudentName, &answer.Answer, &answer.SubmittedAt); err != nil {
			return fmt.Errorf("failed to scan answer row: %w", err)
		}
		tally[answer.StudentID] = answer
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating answer rows: %w", err)
	}

	record.Results = &types.Results{
		PollID:  record.Poll.ID,
		Answers: tally,
		Counts:  types.CountAnswers(record.Poll.Options, tally),
		Total:   len(tally),
	}
	return nil
}

// HealthCheck validates database connectivity
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM polls").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// Close shuts down the writer and the database
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.logger.Info("poll archive closed")
	return nil
}

// applySQLiteOptimizations applies performance optimizations
func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",    // Write-Ahead Logging for concurrency
		"PRAGMA synchronous = NORMAL", // Balance safety and performance
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	return nil
}
