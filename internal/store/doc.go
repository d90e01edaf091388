// Package store is the persistence layer for smartzone's document data.
//
// It holds the per-user hierarchy the app works with:
//   - users (credentials + profile)
//   - zones, with zone-scoped notes and documents
//   - the per-user planner (weekly recurring events)
//
// The backend is an embedded SQLite database. Ids are assigned on first
// insert and stable thereafter; replacing a record is last-write-wins.
// Every successful mutation publishes a feed.Change so realtime consumers
// can re-read the affected collection.
package store
