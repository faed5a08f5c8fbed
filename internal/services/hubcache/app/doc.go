// Package app wires the hub cache: read-through lookups with freshness and
// background refresh, write-through archival, recency lists, and cache
// administration. It also hosts the sweeper runtime.
package app
