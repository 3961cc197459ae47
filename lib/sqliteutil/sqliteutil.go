package sqliteutil

import (
	"database/sql"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "ws://") ||
		strings.HasPrefix(dsn, "wss://") {
		return "libsql"
	}
	return "sqlite"
}

// OpenDB opens the database at the given dsn (a file path, ":memory:" or a
// libsql url) and applies the schema. An "already exists" failure while
// applying the schema is fine, it just means the database has been
// initialized before.
func OpenDB(schema, dsn string) (*sql.DB, error) {
	database, err := sql.Open(driverFor(dsn), dsn)
	if err != nil {
		return nil, err
	}
	_, err = database.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		database.Close()
		return nil, err
	}
	return database, nil
}
