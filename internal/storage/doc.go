package storage

// Package storage is the SQLite persistence layer of the journal.
//
// It owns the row types (tasks, chunks, progress logs, scheduled instances,
// preferences, AI usage) and implements the snapshot/reconcile/commit calls
// the scheduling service runs against.
