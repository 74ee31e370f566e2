package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// MinHashSaltLength is the minimum accepted length of LOG_HASH_SALT.
const MinHashSaltLength = 32

var hashSalt string

// ErrHashSalt reports a missing or short LOG_HASH_SALT.
var ErrHashSalt = fmt.Errorf("LOG_HASH_SALT must be set to at least %d characters", MinHashSaltLength)

// InitHashSalt loads the salt used for hashing identifiers from LOG_HASH_SALT.
func InitHashSalt() error {
	salt := os.Getenv("LOG_HASH_SALT")
	if len(salt) < MinHashSaltLength {
		return ErrHashSalt
	}
	hashSalt = salt
	return nil
}

// InitHashSaltForTesting sets the salt directly.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashUserID returns a short salted hash of a user id for log correlation.
func HashUserID(userID string) string {
	if userID == "" {
		return "<none>"
	}
	return shortHash("user", userID)
}

// HashClientID returns a short salted hash of a browser client id. It never
// equals the user hash of the same value.
func HashClientID(clientID string) string {
	return shortHash("client", clientID)
}

func shortHash(kind, id string) string {
	hash := sha256.Sum256([]byte(kind + ":" + id + ":" + hashSalt))
	return hex.EncodeToString(hash[:4])
}

// SanitizeEmail keeps the first character of the local part and the domain.
func SanitizeEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return SanitizeText(email)
	}
	return local[:1] + "***@" + domain
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	// For short text, show first few characters
	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	// For longer text, show prefix and length
	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
