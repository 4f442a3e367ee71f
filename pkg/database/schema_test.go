package database

import (
	"testing"
)

func TestSchemaValidator_AfterMigrations(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db, nil).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	v := NewSchemaValidator(db)

	if err := v.ValidateTablesExist(); err != nil {
		t.Errorf("ValidateTablesExist: %v", err)
	}
	if err := v.ValidateTableStructure(); err != nil {
		t.Errorf("ValidateTableStructure: %v", err)
	}
	if err := v.ValidateIndexes(); err != nil {
		t.Errorf("ValidateIndexes: %v", err)
	}
	if err := v.ValidateConstraints(); err != nil {
		t.Errorf("ValidateConstraints: %v", err)
	}
}

func TestSchemaValidator_EmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	v := NewSchemaValidator(db)

	if err := v.ValidateTablesExist(); err == nil {
		t.Error("Expected missing tables error")
	}
	if err := v.ValidateIndexes(); err == nil {
		t.Error("Expected missing indexes error")
	}
}

func TestSchemaValidator_ColumnTypeMismatch(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(`CREATE TABLE lessons (id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	err := NewSchemaValidator(db).validateColumns("lessons", map[string]string{"id": "TEXT"})
	if err == nil {
		t.Error("Expected type mismatch error")
	}
}
