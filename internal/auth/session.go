package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/hkdf"

	"github.com/starford/insighthink/internal/apperr"
)

// MinSecretLength is the shortest accepted session secret.
const MinSecretLength = 32

const sessionKeyInfo = "insighthink session v1"

// Sessions issues and verifies stateless session tokens of the form
// base64(userID "." expiry) "." base64(mac), where mac is keyed BLAKE3 over
// the payload with a key derived from the configured secret.
type Sessions struct {
	key []byte
	ttl time.Duration
}

// NewSessions derives the signing key from secret.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: session secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: session ttl must be positive")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("auth: derive session key: %w", err)
	}
	return &Sessions{key: key, ttl: ttl}, nil
}

// TTL is how long an issued token stays valid.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue returns a token for userID that expires ttl after now.
func (s *Sessions) Issue(userID primitive.ObjectID, now time.Time) string {
	payload := userID.Hex() + "." + strconv.FormatInt(now.Add(s.ttl).Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." +
		base64.RawURLEncoding.EncodeToString(s.mac(payload))
}

// Verify checks the signature and expiry of token and returns its user id.
func (s *Sessions) Verify(token string, now time.Time) (primitive.ObjectID, error) {
	invalid := apperr.Unauthorized("invalid session")
	enc, sig, ok := strings.Cut(token, ".")
	if !ok {
		return primitive.NilObjectID, invalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return primitive.NilObjectID, invalid
	}
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return primitive.NilObjectID, invalid
	}
	payload := string(raw)
	if subtle.ConstantTimeCompare(mac, s.mac(payload)) != 1 {
		return primitive.NilObjectID, invalid
	}

	hexID, exp, ok := strings.Cut(payload, ".")
	if !ok {
		return primitive.NilObjectID, invalid
	}
	expiry, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return primitive.NilObjectID, invalid
	}
	if !now.Before(time.Unix(expiry, 0)) {
		return primitive.NilObjectID, apperr.Unauthorized("session expired")
	}
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return primitive.NilObjectID, invalid
	}
	return id, nil
}

func (s *Sessions) mac(payload string) []byte {
	h, err := blake3.NewKeyed(s.key)
	if err != nil {
		// Only returned for keys that are not 32 bytes long.
		panic(err)
	}
	_, _ = h.Write([]byte(payload))
	return h.Sum(nil)
}
