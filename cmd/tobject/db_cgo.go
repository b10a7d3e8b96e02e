//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// openDB opens the template store database with the cgo driver.
func openDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite3", dataSource)
}
