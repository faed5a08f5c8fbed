// Package sqlite provides the hub cache persistence adapter backed by SQLite.
//
// One database holds the volatile cache, the permanent archive, and the
// recency lists. Timestamps are stored as unix milliseconds.
package sqlite
