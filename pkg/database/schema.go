package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator verifies the archive schema after migration
// ARCHITECTURAL DISCOVERY: Separate validation component enables deployment
// verification without coupling to the migration system
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every structural check
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"polls":             "Ended poll storage",
		"answers":           "Final answer storage",
		"schema_migrations": "Migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateTableStructure verifies column types match what the store scans
func (v *SchemaValidator) ValidateTableStructure() error {
	pollColumns := map[string]string{
		"id":            "INTEGER",
		"question":      "TEXT",
		"options":       "TEXT",
		"duration":      "INTEGER",
		"started_at":    "DATETIME",
		"ended_at":      "DATETIME",
		"ended_by":      "TEXT",
		"total_answers": "INTEGER",
	}
	if err := v.validateColumns("polls", pollColumns); err != nil {
		return fmt.Errorf("polls table structure invalid: %w", err)
	}

	answerColumns := map[string]string{
		"poll_id":      "INTEGER",
		"student_id":   "TEXT",
		"student_name": "TEXT",
		"answer":       "TEXT",
		"submitted_at": "DATETIME",
	}
	if err := v.validateColumns("answers", answerColumns); err != nil {
		return fmt.Errorf("answers table structure invalid: %w", err)
	}

	return nil
}

// ValidateIndexes verifies that all lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := map[string]string{
		"idx_polls_ended_at": "History listing",
		"idx_answers_poll":   "Answer lookup by poll",
	}

	for index, purpose := range requiredIndexes {
		exists, err := v.exists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}

	return nil
}

// ValidateConstraints verifies the foreign key and ended_by check are enforced
func (v *SchemaValidator) ValidateConstraints() error {
	_, err := v.db.Exec(`
		INSERT INTO answers (poll_id, student_id, answer, submitted_at)
		VALUES (-1, 'constraint-check', 'A', CURRENT_TIMESTAMP)
	`)
	if err == nil {
		_, _ = v.db.Exec("DELETE FROM answers WHERE poll_id = -1")
		return fmt.Errorf("foreign key constraint not enforced: answers.poll_id")
	}

	_, err = v.db.Exec(`
		INSERT INTO polls (id, question, options, started_at, ended_at, ended_by)
		VALUES (-1, 'constraint-check', '[]', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 'nobody')
	`)
	if err == nil {
		_, _ = v.db.Exec("DELETE FROM polls WHERE id = -1")
		return fmt.Errorf("check constraint not enforced: polls.ended_by")
	}

	return nil
}

func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateColumns checks that a table has the expected columns with correct types
func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	foundColumns := make(map[string]string)
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var defaultValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		foundColumns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for expectedCol, expectedType := range expectedColumns {
		foundType, exists := foundColumns[expectedCol]
		if !exists {
			return fmt.Errorf("column %s not found", expectedCol)
		}
		if foundType != expectedType {
			return fmt.Errorf("column %s has type %s, expected %s", expectedCol, foundType, expectedType)
		}
	}

	return nil
}
