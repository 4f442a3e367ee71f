package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// MigrationManager applies versioned .sql files in order, each in its own
// transaction, tracking applied versions in schema_migrations.
type MigrationManager struct {
	db     *sql.DB
	source fs.FS
}

// NewMigrationManager reads migrations from source. A nil source uses the
// migrations compiled into the binary.
func NewMigrationManager(db *sql.DB, source fs.FS) *MigrationManager {
	if source == nil {
		source = EmbeddedMigrations()
	}
	return &MigrationManager{db: db, source: source}
}

// MigrationSource picks the directory override from cfg or the embedded set.
func MigrationSource(cfg *Config) fs.FS {
	if cfg != nil && cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return EmbeddedMigrations()
}

// EmbeddedMigrations returns the migrations compiled into the binary.
func EmbeddedMigrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// ApplyMigrations applies all pending migrations.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := m.AppliedVersions()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w", migration.Version, migration.Description, err)
		}
	}
	return nil
}

// ValidateSchema ensures the database matches what the store expects.
func (m *MigrationManager) ValidateSchema() error {
	v := NewSchemaValidator(m.db)
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

func (m *MigrationManager) createMigrationTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// LoadMigrations reads and sorts the .sql files of the source.
// "001_lessons.sql" has version "001" and description "lessons".
func (m *MigrationManager) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := fs.ReadFile(m.source, entry.Name())
		if err != nil {
			return nil, err
		}
		parts := strings.SplitN(strings.TrimSuffix(entry.Name(), ".sql"), "_", 2)
		migration := Migration{Version: parts[0], SQL: string(content)}
		if len(parts) == 2 {
			migration.Description = parts[1]
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// AppliedVersions returns the set of versions already recorded.
func (m *MigrationManager) AppliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	versions := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions[version] = true
	}
	return versions, rows.Err()
}

func (m *MigrationManager) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		return err
	}
	return tx.Commit()
}
