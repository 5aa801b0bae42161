// Package tracker is the application core. It owns the credential
// lifecycle (login, nonce-rotating refresh with replay detection,
// logout, password reset) and keeps the derived read caches consistent
// with the relational owner/member graph through fan-out invalidation.
package tracker
