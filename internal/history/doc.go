// Package history persists quicksaves and named history entries into a
// kvstore.Store, writing only the records that changed.
//
// The store layout is compatible with the wandbox web client's local storage:
//
//	wandbox.quicksaves  JSON array of record ids, in quicksave order
//	wandbox.histories   JSON array of record ids, in history order
//	wandbox.keycounter  JSON integer, the next id to assign
//	wd.<id>             one JSON record per id (shared by both lists)
//
// An Index caches which record ids are physically present in the store as of
// the last save or load. The Reconciler diffs the desired Data against that
// Index, removes unreferenced records, writes new ones, and then rewrites the
// three top-level keys. The Loader rebuilds Data and a fresh Index from the
// top-level keys, skipping ids whose record has gone missing.
//
// Manager wraps both behind a mutex and is the API the rest of canine uses.
package history
