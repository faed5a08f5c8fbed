// Package timeouts defines shared timeout constants for hub binaries.
package timeouts

import "time"

// OTelShutdown limits how long span export may take when a binary exits.
const OTelShutdown = 5 * time.Second

// SweepPass caps one expiration sweep across every cache kind.
const SweepPass = 30 * time.Second

// AdminCommand caps a single operator command against the cache store.
const AdminCommand = 30 * time.Second
