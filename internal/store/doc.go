// Package store persists users, calendars, task service accounts and the
// sync records that link calendar events to tasks.
//
// The database is a single SQLite file opened through the pure-Go
// modernc.org/sqlite driver. The schema is created and upgraded by goose
// migrations embedded in the binary. *Store implements sync.Store.
//
// Lookups of missing rows return ErrNotFound, which is sync.ErrNotFound,
// so the engine can tell "not there" from a database failure.
package store
