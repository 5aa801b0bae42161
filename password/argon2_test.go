package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h, err := NewHasher(testConfig())
	require.NoError(t, err)

	digest, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.Contains(t, digest, "$argon2id$")

	ok, err := h.Verify("correct horse battery", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong password!", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSaltsAreUnique(t *testing.T) {
	h, err := NewHasher(testConfig())
	require.NoError(t, err)

	d1, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	d2, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestHashRejectsShortPassword(t *testing.T) {
	h, err := NewHasher(testConfig())
	require.NoError(t, err)

	_, err = h.Hash("short")
	assert.Error(t, err)
}

func TestVerifyRejectsGarbageDigest(t *testing.T) {
	h, err := NewHasher(testConfig())
	require.NoError(t, err)

	for _, digest := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=19$m=8192,t=1,p=1$!!$??"} {
		_, err := h.Verify("whatever-pass", digest)
		assert.Error(t, err, "digest %q", digest)
	}
}

func TestNewHasherValidatesConfig(t *testing.T) {
	bad := testConfig()
	bad.Memory = 16
	_, err := NewHasher(bad)
	assert.Error(t, err)
}
