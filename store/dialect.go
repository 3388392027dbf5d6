package store

import (
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Dialect describes how statements are rendered for one database driver.
type Dialect struct {
	// Driver is the database/sql driver name.
	Driver string

	// Placeholder formats bind parameters in generated statements.
	Placeholder squirrel.PlaceholderFormat

	// Returning is true when inserted keys are read back with RETURNING
	// instead of sql.Result.LastInsertId.
	Returning bool
}

// Supported dialects.
var (
	SQLite = Dialect{
		Driver:      "sqlite3",
		Placeholder: squirrel.Question,
	}
	Postgres = Dialect{
		Driver:      "pgx",
		Placeholder: squirrel.Dollar,
		Returning:   true,
	}
)

// DialectFor returns the dialect registered for a driver name.
// "sqlite" and "postgres" are accepted as aliases.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}
