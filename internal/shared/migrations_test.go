package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("Embedded Files", func(t *testing.T) {
		for _, dir := range []string{"sql/sqlite3", "sql/postgres"} {
			entries, err := migrationFiles.ReadDir(dir)
			if err != nil {
				t.Fatalf("failed to read %s: %v", dir, err)
			}
			if len(entries) == 0 || len(entries)%2 != 0 {
				t.Errorf("expected paired up/down migrations in %s, got %d files", dir, len(entries))
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db, DriverSQLite); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		version, dirty, err := MigrationVersion(db, DriverSQLite)
		if err != nil {
			t.Fatalf("failed to read version: %v", err)
		}
		if version != 2 || dirty {
			t.Errorf("expected clean version 2, got %d (dirty=%v)", version, dirty)
		}

		for _, table := range []string{"tokens", "executions", "words"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db, DriverSQLite); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		newVersion, _, err := MigrationVersion(db, DriverSQLite)
		if err != nil {
			t.Fatalf("failed to read version after rollback: %v", err)
		}
		if newVersion >= version {
			t.Errorf("expected version to decrease after rollback, got %d (was %d)", newVersion, version)
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db, DriverSQLite); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db, DriverSQLite); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
	})

	t.Run("Rollback Without Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RollbackMigration(db, DriverSQLite); err == nil {
			t.Error("expected error when nothing was applied")
		}
	})

	t.Run("Unsupported Driver", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db, "mysql"); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})
}
