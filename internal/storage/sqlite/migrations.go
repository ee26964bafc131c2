package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist. Child tables carry explicit
// position columns because attendee order, receipt order and payee order
// are all part of the ledger contract.
const schema = `
CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    chat_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    created_by_id INTEGER NOT NULL,
    created_by_name TEXT NOT NULL,
    created_on INTEGER NOT NULL,
    last_referenced INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trips_chat_recency ON trips(chat_id, last_referenced DESC);

CREATE TABLE IF NOT EXISTS trip_attendees (
    trip_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    user_name TEXT NOT NULL,
    PRIMARY KEY (trip_id, position),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS receipts (
    trip_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    payer_id INTEGER NOT NULL,
    payer_name TEXT NOT NULL,
    amount REAL NOT NULL,
    description TEXT NOT NULL,
    PRIMARY KEY (trip_id, position),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS receipt_payees (
    trip_id TEXT NOT NULL,
    receipt_position INTEGER NOT NULL,
    position INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    user_name TEXT NOT NULL,
    PRIMARY KEY (trip_id, receipt_position, position),
    FOREIGN KEY (trip_id, receipt_position) REFERENCES receipts(trip_id, position) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pending_attributions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    payer_id INTEGER NOT NULL,
    payer_name TEXT NOT NULL,
    amount REAL NOT NULL,
    description TEXT NOT NULL,
    poll_id TEXT NOT NULL UNIQUE,
    chat_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    expiry INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_candidates (
    pending_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    user_name TEXT NOT NULL,
    PRIMARY KEY (pending_id, position),
    FOREIGN KEY (pending_id) REFERENCES pending_attributions(id) ON DELETE CASCADE
);
`

// runMigrations executes the schema statements.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
