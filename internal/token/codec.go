// Package token implements the stateless token codec: HS256-signed access
// tokens and opaque refresh-token strings. It performs no I/O and is safe
// for concurrent use.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid access token")

const refreshTokenBytes = 32

// base64.RawURLEncoding.EncodedLen(refreshTokenBytes)
const encodedRefreshTokenLen = 43

// Claims are the statements embedded in an access token.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret    []byte
	accessTTL time.Duration
}

func NewCodec(secret []byte, accessTTL time.Duration) *Codec {
	return &Codec{secret: secret, accessTTL: accessTTL}
}

// SignAccessToken mints a short-lived HS256 token for the given user.
func (c *Codec) SignAccessToken(userID, email string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// VerifyAccessToken parses and validates an access token. Any failure
// (malformed, bad signature, expired) is reported as ErrInvalidToken.
func (c *Codec) VerifyAccessToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithStrictDecoding())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshToken returns a fresh opaque refresh token from crypto/rand.
func (c *Codec) NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ValidRefreshTokenFormat is a cheap structural check performed before any
// storage lookup. The session store remains the authority.
func ValidRefreshTokenFormat(s string) bool {
	if len(s) != encodedRefreshTokenLen {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil && len(raw) == refreshTokenBytes
}

// HashRefreshToken returns the fingerprint under which a refresh token is
// stored at rest.
func HashRefreshToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (c *Codec) TTLSeconds() int64 {
	return int64(c.accessTTL.Seconds())
}
