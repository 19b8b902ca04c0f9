package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starford/insighthink/internal/apperr"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSessionRoundTrip(t *testing.T) {
	s, err := NewSessions(testSecret, time.Hour)
	require.NoError(t, err)

	id := primitive.NewObjectID()
	now := time.Now()
	token := s.Issue(id, now)

	got, err := s.Verify(token, now.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.Verify(token, now.Add(2*time.Hour))
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Contains(t, err.Error(), "expired")
}

func TestSessionRejectsTampering(t *testing.T) {
	s, err := NewSessions(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewSessions(strings.Repeat("x", 40), time.Hour)
	require.NoError(t, err)

	now := time.Now()
	token := s.Issue(primitive.NewObjectID(), now)
	payload, sig, _ := strings.Cut(token, ".")
	forged := other.Issue(primitive.NewObjectID(), now)
	forgedPayload, _, _ := strings.Cut(forged, ".")

	for name, tok := range map[string]string{
		"empty":          "",
		"no signature":   payload,
		"bad base64":     "!!!." + sig,
		"swapped":        forgedPayload + "." + sig,
		"foreign secret": forged,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(tok, now)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestNewSessionsValidatesSecret(t *testing.T) {
	_, err := NewSessions("short", time.Hour)
	assert.Error(t, err)
	_, err = NewSessions(testSecret, 0)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", h)
	assert.True(t, CheckPassword(h, "correct horse"))
	assert.False(t, CheckPassword(h, "wrong horse"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse"))
}
