package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Role decides which endpoints a key may call.
type Role string

const (
	RoleCashier  Role = "cashier"
	RoleReviewer Role = "reviewer" // reviewers can also do everything a cashier can
)

// GenerateAPIKey creates a secure random API key and its SHA256 hash.
//
// Returns:
//   - realKey: The actual API key to hand to the cashier or reviewer (e.g., "cp_live_abc123...")
//   - keyHash: SHA256 hash to put in CASHIER_KEY_HASHES / REVIEWER_KEY_HASHES
//   - error: Any error during random byte generation
func GenerateAPIKey() (string, string, error) {
	// 1. Generate 32 random bytes using crypto/rand (cryptographically secure)
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// 2. Add prefix to the hex string
	realKey := fmt.Sprintf("cp_live_%s", hex.EncodeToString(bytes))

	// 3. Hash the key - only the hash is ever configured
	return realKey, HashKey(realKey), nil
}

// HashKey returns the hex SHA256 of key.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ValidateKey checks if a provided API key matches the stored hash, in constant time.
func ValidateKey(providedKey, storedHash string) bool {
	computed := HashKey(providedKey)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(storedHash))) == 1
}

// Keyring maps configured key hashes to roles.
type Keyring struct {
	hashes map[string]Role
}

func NewKeyring(cashierHashes, reviewerHashes []string) *Keyring {
	k := &Keyring{hashes: make(map[string]Role)}
	for _, h := range cashierHashes {
		k.hashes[strings.ToLower(h)] = RoleCashier
	}
	for _, h := range reviewerHashes {
		k.hashes[strings.ToLower(h)] = RoleReviewer
	}
	return k
}

// Empty reports whether no keys are configured.
func (k *Keyring) Empty() bool { return len(k.hashes) == 0 }

// Authenticate returns the role of key, if any.
func (k *Keyring) Authenticate(key string) (Role, bool) {
	for hash, role := range k.hashes {
		if ValidateKey(key, hash) {
			return role, true
		}
	}
	return "", false
}

// Allows reports whether role may act as required.
func (r Role) Allows(required Role) bool {
	return r == required || r == RoleReviewer
}
