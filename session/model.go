package session

// Session is one logical login. A user may hold many concurrent sessions,
// one per device. The nonce is the rotating single-use-per-generation
// value mirrored into the jti of every access token minted for this
// session; presenting a stale nonce on refresh burns the whole session.
type Session struct {
	ID        string
	UserID    string
	Nonce     string
	CreatedAt int64
	ExpiresAt int64
}
