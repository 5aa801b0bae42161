// Package token signs and verifies the short-lived bearer tokens that
// authorize API calls. A token's jti claim mirrors the issuing session's
// current nonce, binding it to one session generation; the codec itself
// is pure and holds no state beyond its keys.
package token
