package services

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashService fingerprints upload payloads for duplicate detection
type HashService struct{}

// NewHashService creates a new HashService
func NewHashService() *HashService {
	return &HashService{}
}

// Fingerprint returns the lowercase hex SHA-256 of data
func (s *HashService) Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Normalize trims, drops an optional "sha256:" prefix and lowercases
func (s *HashService) Normalize(hash string) string {
	normalized := strings.ToLower(strings.TrimSpace(hash))
	return strings.TrimPrefix(normalized, "sha256:")
}

// Valid reports whether hash is a SHA-256 digest once normalized
func (s *HashService) Valid(hash string) bool {
	return sha256Pattern.MatchString(s.Normalize(hash))
}
