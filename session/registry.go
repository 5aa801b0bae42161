package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/calmops/taskhive/internal"
)

var (
	// ErrSessionNotFound is returned when no row exists for the session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNonceMismatch is returned when the presented nonce does not match
	// the session's current nonce. The session has already been deleted by
	// the time callers see this error.
	ErrNonceMismatch = errors.New("session nonce mismatch")
	// ErrSessionExpired is returned when the session exists but its
	// expiry is in the past. The row is left to age out via its TTL.
	ErrSessionExpired = errors.New("session expired")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
	rotateStatusCorrupt  int64 = 4
)

// rotateNonceScript performs the whole lookup-compare-rotate sequence of a
// refresh atomically. Two concurrent refreshes with the same valid nonce
// therefore cannot both succeed: the loser re-reads the rotated state and
// takes the mismatch branch. The mismatch check runs before the expiry
// check so replay of an expired family is still reported as revocation.
const rotateNonceScript = `
local fields = redis.call("HMGET", KEYS[1], "user_id", "nonce", "created_at", "expires_at")
local user_id = fields[1]
local nonce = fields[2]
local created_at = fields[3]
local expires_at = tonumber(fields[4])

if not user_id then
  return {0}
end
if not nonce or not expires_at then
  return {4}
end

if nonce ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", ARGV[5] .. user_id, ARGV[6])
  return {2}
end

if expires_at <= tonumber(ARGV[3]) then
  return {1}
end

redis.call("HSET", KEYS[1], "nonce", ARGV[2], "expires_at", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[7])
return {3, user_id, created_at}
`

var rotateNonceLua = redis.NewScript(rotateNonceScript)

const deleteSessionScript = `
local user_id = redis.call("HGET", KEYS[1], "user_id")
if not user_id then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. user_id, ARGV[2])
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Registry is the Redis-backed session store. It owns session rows
// exclusively; nothing else reads or writes the underlying keys.
type Registry struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewRegistry creates a Registry. prefix sets the Redis key namespace,
// lifetime is the refresh lifetime applied on create and extended on
// every successful refresh.
func NewRegistry(rdb redis.UniversalClient, prefix string, lifetime time.Duration) *Registry {
	if prefix == "" {
		prefix = "ts"
	}
	return &Registry{redis: rdb, prefix: prefix, lifetime: lifetime}
}

func (r *Registry) sessionKey(sessionID string) string {
	return r.prefix + ":sess:" + sessionID
}

func (r *Registry) userPrefix() string {
	return r.prefix + ":user:"
}

func (r *Registry) userKey(userID string) string {
	return r.userPrefix() + userID
}

// Create inserts a fresh session for userID with a new id and nonce.
func (r *Registry) Create(ctx context.Context, userID string) (*Session, error) {
	id, err := internal.NewOpaqueID()
	if err != nil {
		return nil, err
	}
	nonce, err := internal.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:        id.String(),
		UserID:    userID,
		Nonce:     nonce,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(r.lifetime).Unix(),
	}

	key := r.sessionKey(sess.ID)
	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", sess.UserID,
			"nonce", sess.Nonce,
			"created_at", sess.CreatedAt,
			"expires_at", sess.ExpiresAt,
		)
		pipe.PExpire(ctx, key, r.lifetime)
		pipe.SAdd(ctx, r.userKey(userID), sess.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// Refresh validates presentedNonce against the session's current nonce
// and, when they match, rotates the nonce and extends the expiry. The
// compare and swap happen inside one Lua script, so exactly one of any
// number of concurrent refreshes can win; the rest observe the rotated
// nonce and are treated as replay, which deletes the session.
func (r *Registry) Refresh(ctx context.Context, sessionID, presentedNonce string) (*Session, error) {
	nextNonce, err := internal.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newExpiry := now.Add(r.lifetime)

	result, err := rotateNonceLua.Run(ctx, r.redis,
		[]string{r.sessionKey(sessionID)},
		presentedNonce,
		nextNonce,
		now.Unix(),
		newExpiry.Unix(),
		r.userPrefix(),
		sessionID,
		r.lifetime.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrSessionNotFound
	case rotateStatusExpired:
		return nil, ErrSessionExpired
	case rotateStatusMismatch:
		return nil, ErrNonceMismatch
	case rotateStatusRotated:
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: missing rotated session fields", ErrRedisUnavailable)
		}
		userID, _ := parts[1].(string)
		createdAt, _ := luaInt(parts[2])
		return &Session{
			ID:        sessionID,
			UserID:    userID,
			Nonce:     nextNonce,
			CreatedAt: createdAt,
			ExpiresAt: newExpiry.Unix(),
		}, nil
	case rotateStatusCorrupt:
		return nil, fmt.Errorf("%w: corrupt session row", ErrRedisUnavailable)
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, code)
	}
}

// Delete removes a session. It is idempotent and reports whether a row
// was actually removed.
func (r *Registry) Delete(ctx context.Context, sessionID string) (bool, error) {
	removed, err := deleteSessionLua.Run(ctx, r.redis,
		[]string{r.sessionKey(sessionID)},
		r.userPrefix(),
		sessionID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed == 1, nil
}

// DeleteAllForUser removes every session of a user, e.g. after a password
// reset. The read and delete phases are not one atomic unit; a session
// created in between is not captured and ages out on its own TTL.
func (r *Registry) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := r.userKey(userID)

	ids, err := r.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, r.sessionKey(id))
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get fetches a session without mutating it. Expired rows are reported
// as not found.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := r.redis.HMGet(ctx, r.sessionKey(sessionID),
		"user_id", "nonce", "created_at", "expires_at").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, ok := sessionFromFields(sessionID, fields)
	if !ok || sess.ExpiresAt <= time.Now().Unix() {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ListByUser enumerates the live sessions of a user for "active
// sessions" views. Stale index entries are pruned best-effort.
func (r *Registry) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	pipe := r.redis.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, r.sessionKey(id), "user_id", "nonce", "created_at", "expires_at")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	nowUnix := time.Now().Unix()
	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		sess, ok := sessionFromFields(ids[i], fields)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		if sess.ExpiresAt <= nowUnix {
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		// Index hygiene only; a failure here never fails the listing.
		_ = r.redis.SRem(ctx, r.userKey(userID), stale...).Err()
	}

	return sessions, nil
}

// Ping reports point-in-time Redis availability and latency.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func sessionFromFields(sessionID string, fields []interface{}) (*Session, bool) {
	if len(fields) != 4 {
		return nil, false
	}
	userID, ok := fields[0].(string)
	if !ok || userID == "" {
		return nil, false
	}
	nonce, ok := fields[1].(string)
	if !ok || nonce == "" {
		return nil, false
	}
	createdAt, ok := luaInt(fields[2])
	if !ok {
		return nil, false
	}
	expiresAt, ok := luaInt(fields[3])
	if !ok {
		return nil, false
	}

	return &Session{
		ID:        sessionID,
		UserID:    userID,
		Nonce:     nonce,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, true
}

func luaInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
