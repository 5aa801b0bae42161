// Package storage is the authoritative relational store: users,
// projects, tasks, and the owner/member relation rows that drive cache
// invalidation. Failures are folded into a closed error set (ErrNotFound,
// ErrConflict) so callers never inspect SQLSTATE codes.
package storage
