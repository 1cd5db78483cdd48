// package repositories provides persistence for tokens, sync executions and exported words.
//
// Queries are written with "?" placeholders and rebound for the configured driver.
package repositories

import (
	"database/sql"

	"github.com/desertthunder/skyanki/internal/shared"
)

// store holds the connection and SQL dialect shared by every repository.
type store struct {
	db     *sql.DB
	driver string
}

func newStore(db *sql.DB, driver string) store {
	if driver == "" {
		driver = shared.DriverSQLite
	}
	return store{db: db, driver: driver}
}

// q rebinds query placeholders for the store's driver.
func (s store) q(query string) string {
	return shared.Rebind(s.driver, query)
}
