package database

import (
	"database/sql"
	"fmt"
)

var requiredTables = []string{
	"lessons",
	"slides",
	"questions",
	"completions",
	"pipeline_runs",
	"schema_migrations",
}

var requiredIndexes = []string{
	"idx_lessons_published_order",
	"idx_completions_user",
	"idx_pipeline_runs_lesson",
}

// SchemaValidator checks a database against the schema the store relies on.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range requiredTables {
		exists, err := v.objectExists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies column names and declared types.
func (v *SchemaValidator) ValidateTableStructure() error {
	expected := map[string]map[string]string{
		"lessons": {
			"id":           "TEXT",
			"lesson_order": "INTEGER",
			"title":        "TEXT",
			"description":  "TEXT",
			"emoji":        "TEXT",
			"published":    "INTEGER",
			"created_at":   "DATETIME",
			"updated_at":   "DATETIME",
		},
		"slides": {
			"lesson_id":    "TEXT",
			"number":       "INTEGER",
			"title":        "TEXT",
			"text":         "TEXT",
			"audio_url":    "TEXT",
			"duration_ms":  "INTEGER",
			"theme_kind":   "TEXT",
			"emoji":        "TEXT",
			"illustration": "TEXT",
		},
		"questions": {
			"lesson_id":      "TEXT",
			"id":             "INTEGER",
			"question":       "TEXT",
			"correct_answer": "TEXT",
			"difficulty":     "TEXT",
			"points":         "INTEGER",
		},
		"completions": {
			"user_id":      "TEXT",
			"lesson_id":    "TEXT",
			"completed_at": "DATETIME",
		},
	}

	for table, columns := range expected {
		if err := v.validateColumns(table, columns); err != nil {
			return fmt.Errorf("%s table structure invalid: %w", table, err)
		}
	}
	return nil
}

// ValidateIndexes verifies that all lookup indexes exist.
func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range requiredIndexes {
		exists, err := v.objectExists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

// ValidateConstraints verifies that foreign keys and theme checks are enforced.
func (v *SchemaValidator) ValidateConstraints() error {
	_, err := v.db.Exec(`INSERT INTO slides (lesson_id, number, text) VALUES ('__missing__', 1, 'probe')`)
	if err == nil {
		_, _ = v.db.Exec(`DELETE FROM slides WHERE lesson_id = '__missing__'`)
		return fmt.Errorf("foreign key constraint not enforced: slides.lesson_id")
	}

	if _, err := v.db.Exec(`INSERT INTO lessons (id, lesson_order, title) VALUES ('__probe__', 999999, 'probe')`); err != nil {
		return fmt.Errorf("failed to create probe lesson: %w", err)
	}
	defer func() { _, _ = v.db.Exec(`DELETE FROM lessons WHERE id = '__probe__'`) }()

	_, err = v.db.Exec(`INSERT INTO slides (lesson_id, number, text, theme_kind) VALUES ('__probe__', 1, 'probe', 'sparkles')`)
	if err == nil {
		return fmt.Errorf("check constraint not enforced: slides.theme_kind")
	}
	return nil
}

func (v *SchemaValidator) objectExists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name, dtype  string
			notNull, pk  int
			defaultValue interface{}
		)
		if err := rows.Scan(&cid, &name, &dtype, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = dtype
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for col, want := range expectedColumns {
		got, ok := found[col]
		if !ok {
			return fmt.Errorf("column %s not found", col)
		}
		if got != want {
			return fmt.Errorf("column %s has type %s, expected %s", col, got, want)
		}
	}
	return nil
}
