package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btouchard/recents/internal/config"
)

const tokenFileName = "token"

// HashToken returns the hex-encoded SHA-256 of a raw token. Only hashes are
// stored in configuration.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// LoadOrCreateToken reads the API token from dir/token, or generates and
// persists a new 256-bit hex-encoded token if the file is missing or empty.
func LoadOrCreateToken(dir string) (string, error) {
	path := filepath.Join(dir, tokenFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path is built from the configured token dir
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}

	return RotateToken(dir)
}

// RotateToken generates a new token, replacing the existing one.
func RotateToken(dir string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tokenFileName), []byte(token), 0600); err != nil {
		return "", fmt.Errorf("write token: %w", err)
	}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Verifier checks bearer tokens against a set of known hashes.
type Verifier struct {
	entries []config.APITokenEntry
}

// NewVerifier creates a Verifier for the configured tokens.
func NewVerifier(entries []config.APITokenEntry) *Verifier {
	return &Verifier{entries: entries}
}

// Enabled reports whether any token is configured. A Verifier with no
// tokens accepts nothing.
func (v *Verifier) Enabled() bool {
	return len(v.entries) > 0
}

// Verify returns the name of the token matching raw.
func (v *Verifier) Verify(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	hash := []byte(HashToken(raw))
	for _, e := range v.entries {
		if subtle.ConstantTimeCompare(hash, []byte(strings.ToLower(e.TokenHash))) == 1 {
			return e.Name, true
		}
	}
	return "", false
}
