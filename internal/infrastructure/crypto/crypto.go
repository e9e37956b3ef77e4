// Package crypto seals secrets stored in the booking file.
package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/argon2"
)

const (
	sealName = "sportsched-secret"
	hashLen  = 64
	blockLen = 32
)

// The salt is fixed so that one secret key always yields the same keys.
var kdfSalt = []byte("sportsched/seal/v1")

var ErrEmptySecret = errors.New("secret key is empty")

// DeriveKeys stretches secret into securecookie hash and block keys.
func DeriveKeys(secret string) (hashKey, blockKey []byte) {
	k := argon2.IDKey([]byte(secret), kdfSalt, 1, 64*1024, 4, hashLen+blockLen)
	return k[:hashLen], k[hashLen:]
}

// Sealer encrypts and authenticates short strings.
type Sealer struct{ sc *securecookie.SecureCookie }

func NewSealer(secret string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	hashKey, blockKey := DeriveKeys(secret)
	sc := securecookie.New(hashKey, blockKey).MaxAge(0)
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Sealer{sc: sc}, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	token, err := s.sc.Encode(sealName, plaintext)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return token, nil
}

func (s *Sealer) Open(token string) (string, error) {
	var plaintext string
	if err := s.sc.Decode(sealName, strings.TrimSpace(token), &plaintext); err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return plaintext, nil
}

// GenerateSecret returns a random base64 secret suitable for SPORTSCHED_SECRET_KEY.
func GenerateSecret() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", errors.New("failed to generate random key")
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}
