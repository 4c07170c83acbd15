package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// busyTimeoutMillis is how long sqlite waits on a lock held by another
// process (ex. the cli editing subscribers while the daemon runs).
const busyTimeoutMillis = 5000

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// OpenSqlite opens (creating it if needed) a local sqlite database and applies Schema.
func OpenSqlite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis))
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec(Schema)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

// OpenLibsql opens a remote libSQL database (ex. libsql://<db>.turso.io) and applies Schema.
func OpenLibsql(dbUrl, authToken string) (*sql.DB, error) {
	if dbUrl == "" {
		return nil, wrapOpenDB(fmt.Errorf("a libsql url was not specified"))
	}
	if authToken != "" {
		parsed, err := url.Parse(dbUrl)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		query := parsed.Query()
		query.Set("authToken", authToken)
		parsed.RawQuery = query.Encode()
		dbUrl = parsed.String()
	}

	db, err := sql.Open("libsql", dbUrl)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec(Schema)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	return db, nil
}
