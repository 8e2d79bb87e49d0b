// Package storage persists cycle progress and the delivery audit trail.
//
// The state record maps a pool key to the items not yet drawn in the current
// cycle. Every Save is a complete rewrite; a lost or corrupt record only causes
// an early repeat after restart, never a skipped item.
package storage
