package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Reset wipes every table, children first, and resets the user id
// sequence so a fresh seed starts at uid 1.
//
// Compatible with MySQL, Postgres and SQLite.
func Reset(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		table, err := tableName(db, models[i])
		if err != nil {
			return err
		}
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "postgres":
		db.Exec("ALTER SEQUENCE users_id_seq RESTART WITH 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}
	return nil
}

func tableName(db *gorm.DB, model any) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("failed to parse %T: %w", model, err)
	}
	return stmt.Schema.Table, nil
}
