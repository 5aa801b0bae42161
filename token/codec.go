package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates what a bearer token is allowed to be used for.
// The codec only carries the value; checking it against the expected
// type for an operation is a caller responsibility.
type Type string

const (
	// TypeAccess authorizes regular API calls.
	TypeAccess Type = "ACCESS"
	// TypeResetPassword authorizes exactly one password-reset confirmation.
	TypeResetPassword Type = "RESET_PASSWORD"
)

var (
	// ErrMalformed is returned when the token is not a parseable JWT.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the token is structurally valid but past exp.
	ErrExpired = errors.New("token expired")
)

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Config holds the immutable codec configuration.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Claims is the verified payload of a bearer token. Subject carries the
// user id, ID (jti) the session nonce the token was minted against.
type Claims struct {
	TokenType Type `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies short-lived bearer tokens. It is stateless
// and safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates the configuration and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Codec{config: cfg}, nil
}

// Issue mints a signed token for subject bound to tokenID (jti). The
// codec does not generate tokenID; callers supply an opaque random value
// of at least 16 bytes of entropy.
func (c *Codec) Issue(subject, tokenID string, typ Type, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("invalid token ttl")
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(tokenID) == "" {
		return "", errors.New("subject and token id required")
	}

	now := time.Now()
	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(c.method(), claims)

	key, err := c.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

// Verify parses and verifies a token, enforcing signature, issuer, and
// expiry. Failures are collapsed onto the codec's closed error set.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	return c.parse(tokenStr, false)
}

// VerifyExpired verifies the signature and structure of a token but
// tolerates an elapsed exp. The refresh path uses this: the presented
// access token is usually past its lifetime, yet its jti still names the
// session nonce to rotate against.
func (c *Codec) VerifyExpired(tokenStr string) (*Claims, error) {
	return c.parse(tokenStr, true)
}

func (c *Codec) parse(tokenStr string, allowExpired bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method().Alg()}),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		if c.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(c.config.Leeway))
		}
		if c.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(c.config.Issuer))
		}
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.verifyKey()
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	if allowExpired {
		// Issuer is normally checked by the parser; repeat it here since
		// WithoutClaimsValidation skips registered claim checks.
		if c.config.Issuer != "" && claims.Issuer != c.config.Issuer {
			return nil, ErrMalformed
		}
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}

func (c *Codec) method() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) signKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) verifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
