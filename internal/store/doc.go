// Package store provides local persistent state for coven-console using SQLite.
//
// # Architecture
//
// Three narrow interfaces describe what the rest of the console needs:
//
//   - TokenStore: the saved login session (token, email, expiry)
//   - KVStore: small string cache, e.g. the last resolved backend URL
//   - TranscriptStore: locally mirrored chat sessions and messages
//
// SQLiteStore implements all of them in a single struct. Consumers accept
// the narrowest interface they need.
//
// # SQLite Configuration
//
// The store uses the pure Go modernc.org/sqlite driver with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Deleting a chat session cascades to its messages. Timestamps are stored
// as RFC3339 text in UTC.
//
// # Testing
//
// Use NewMockStore() for unit tests in other packages, and
// NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for tests that
// exercise real SQL.
package store
