package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "broadsheets/jss1.csv")
	require.NoError(t, err)

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "broadsheets/jss1.csv", path)
	assert.True(t, expiresAt.Equal(parsedExpiry))
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", "a.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, _, _, err = NewSignedURLSigner("other", time.Hour).Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, _, _, err = signer.Parse("garbage", false)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("job-1", "a.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", path)
}
