package logging

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

const redactedValue = "[REDACTED]"

var (
	sensitiveKeyParts = []string{"password", "passphrase", "secret", "token", "private", "recovery_code", "authorization"}
	identityKeys      = map[string]struct{}{
		"identity":    {},
		"counterpart": {},
		"target":      {},
		"claimant":    {},
	}
)

// RedactHook masks sensitive fields and replaces identity fields with a
// per-process digest before any formatter sees them.
type RedactHook struct {
	nonce string
}

// NewRedactHook returns a hook with a fresh digest nonce.
func NewRedactHook() *RedactHook {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return &RedactHook{nonce: "fallback_nonce"}
	}
	return &RedactHook{nonce: hex.EncodeToString(buf)}
}

// Levels implements log.Hook.
func (h *RedactHook) Levels() []log.Level { return log.AllLevels }

// Fire implements log.Hook.
func (h *RedactHook) Fire(entry *log.Entry) error {
	for key, value := range entry.Data {
		lower := strings.ToLower(strings.TrimSpace(key))
		switch {
		case isSensitiveKey(lower):
			entry.Data[key] = redactedValue
		case isIdentityKey(lower):
			entry.Data[key] = h.digest(fmt.Sprint(value))
		}
	}
	return nil
}

func (h *RedactHook) digest(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + h.nonce))
	return "id_" + hex.EncodeToString(sum[:6])
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func isIdentityKey(key string) bool {
	_, ok := identityKeys[key]
	return ok
}
