package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lessoncast/internal/logger"
	dbconfig "lessoncast/pkg/database"
)

// Manager is the sqlite-backed LessonStore. Reads go straight to the pool;
// every write is funneled through a single writer goroutine.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	log          *logger.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas and starts the writer.
// Migrations are applied separately through MigrationManager.
func NewManager(config *dbconfig.Config, log *logger.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	m := &Manager{
		db:           db,
		config:       config,
		log:          log.With("service", "LessonStore"),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && isRetryable(err) {
				m.log.Warn("database write failed, retrying", "error", err, "delay", m.config.RetryDelay)
				select {
				case <-time.After(m.config.RetryDelay):
					err = op.operation(m.db)
				case <-m.shutdown:
				}
				if err != nil {
					m.log.Error("database write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.log.Debug("database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write and waits for its result.
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	timer := time.NewTimer(m.config.WriteTimeout)
	defer timer.Stop()

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return ErrManagerClosed
	}

	select {
	case err := <-result:
		return err
	case <-m.shutdown:
		return ErrManagerClosed
	}
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lessons").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying connection pool for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close drains the writer and closes the pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
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
