package sqlite

// dbFileName is the database file created inside the data directory.
const dbFileName = "crudkit.db"

// Schema DDL for the key/value table. Each row holds the JSON blob of one
// local cache entry.
const schemaSQL = `CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

// Pragmas applied on attach.
const pragmasSQL = `PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;`
