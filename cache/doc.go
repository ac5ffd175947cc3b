// Package cache is the Redis-backed session cache. It serves two roles with
// deliberately different failure semantics:
//
//   - User projections: a read-through cache of sanitized account records.
//     Purely a performance optimization: when Redis is unreachable every
//     read degrades to a miss and every write to a no-op, and the system
//     stays correct, only slower.
//
//   - Refresh-token ledger: the source of truth for "is this token id still
//     live" and "has it already been consumed". Operations here surface
//     [ErrUnavailable] so the engine can fail closed instead of silently
//     skipping the revocation check.
//
// Consumption of a ledger entry is a single Lua script: the used-marker
// check, the marker write, and the companion delete are atomic with respect
// to concurrent rotation attempts on the same token id. The marker is
// written before the companion is deleted, so a crash mid-rotation leans
// toward re-rejecting a retried token rather than granting two sessions.
package cache
