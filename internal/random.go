package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// opaqueIDSize is the raw byte length of session ids and nonces.
// 16 bytes of crypto/rand output encoded as unpadded base64url.
const opaqueIDSize = 16

// OpaqueID is a fixed-size random identifier used for session ids and
// session nonces. The string form is unpadded base64url.
type OpaqueID [opaqueIDSize]byte

// NewOpaqueID returns a fresh random identifier.
func NewOpaqueID() (OpaqueID, error) {
	var id OpaqueID
	_, err := rand.Read(id[:])
	return id, err
}

func (o OpaqueID) String() string {
	return base64.RawURLEncoding.EncodeToString(o[:])
}

// ParseOpaqueID decodes the base64url string form back into an OpaqueID.
func ParseOpaqueID(s string) (OpaqueID, error) {
	var id OpaqueID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid opaque id size")
	}

	copy(id[:], raw)
	return id, nil
}

// NewNonce returns a fresh session nonce in string form. Nonces and
// session ids share the same shape; the distinction is purely semantic.
func NewNonce() (string, error) {
	id, err := NewOpaqueID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
