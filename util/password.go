package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/argon2"
)

var (
	jwtSecret     = getEnv("JWTSECRET", "")
	jwtSecretByte = []byte(jwtSecret)
	jwtMutex      sync.RWMutex
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// SetJWTSecret allows tests or runtime code to update the JWT secret used
// for token signing. This function is thread-safe and can be called
// concurrently. Tests using this should avoid parallel execution if they
// need deterministic secret values.
func SetJWTSecret(secret string) {
	jwtMutex.Lock()
	defer jwtMutex.Unlock()
	jwtSecret = secret
	jwtSecretByte = []byte(secret)
}

// GetJWTSecretByte returns a copy of the current JWT secret bytes in a thread-safe manner.
func GetJWTSecretByte() []byte {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	return append([]byte(nil), jwtSecretByte...)
}

// Argon2id parameters. Conservative interactive-login settings.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// GenerateSalt returns a random hex-encoded salt for password hashing.
func GenerateSalt() (string, error) {
	b := make([]byte, saltLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashPasswordArgon2 derives an argon2id hash of the password with the given
// hex salt. The stored value carries an "argon2id$" prefix so legacy HMAC
// hashes can be told apart during verification.
func HashPasswordArgon2(password, salt string) (string, error) {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), saltBytes, argonTime, argonMemory, argonThreads, argonKeyLen)
	return "argon2id$" + hex.EncodeToString(key), nil
}

// hashPasswordHMAC is the legacy scheme: HMAC-SHA256 keyed with the JWT secret.
// Retained for verifying accounts created before the argon2 migration.
func hashPasswordHMAC(password string) string {
	h := hmac.New(sha256.New, GetJWTSecretByte())
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyPassword checks a plaintext password against the stored hash using a
// constant-time comparison. Argon2 hashes require the per-user salt; stored
// values without the argon2id prefix fall back to the legacy HMAC scheme.
func VerifyPassword(password, stored, salt string) (bool, error) {
	if stored == "" {
		return false, nil
	}
	if len(stored) > len("argon2id$") && stored[:len("argon2id$")] == "argon2id$" {
		computed, err := HashPasswordArgon2(password, salt)
		if err != nil {
			return false, err
		}
		return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1, nil
	}
	legacy := hashPasswordHMAC(password)
	return subtle.ConstantTimeCompare([]byte(legacy), []byte(stored)) == 1, nil
}
