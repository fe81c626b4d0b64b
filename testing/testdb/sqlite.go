package testdb

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var sqliteSeq atomic.Int64

// NewSQLite opens a private in-memory SQLite database with the given tables
// created. It needs neither Docker nor network and is closed when t ends.
//
// A single connection is kept open so every query, transactions included,
// sees the same in-memory database.
func NewSQLite(t *testing.T, models ...interface{}) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:charity_%d?mode=memory&cache=shared&_foreign_keys=on", sqliteSeq.Add(1))
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })

	createTables(t, db, models...)
	return db
}
