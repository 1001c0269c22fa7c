// Package broadcast owns the set of connected WebSocket clients and pushes
// status snapshots and incremental vote updates to all of them.
package broadcast
