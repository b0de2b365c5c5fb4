// Package runlog is the processing-run registry: which pipeline ran, over
// how many chunks, and how complete the output came out. It stores run
// metadata only; result arrays never enter the database.
package runlog

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the registry database at path. The schema is
// managed by migrations; call MigrateUp before first use.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}
