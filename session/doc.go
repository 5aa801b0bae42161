// Package session implements the credential session registry and its
// nonce-rotation refresh protocol on Redis.
//
// Each login creates one session row holding a rotating nonce. Every
// refresh swaps the nonce inside a single Lua script, so a leaked
// refresh credential is usable at most once: whichever party refreshes
// second presents a stale nonce, which is treated as theft and destroys
// the session rather than letting either party continue silently.
package session
