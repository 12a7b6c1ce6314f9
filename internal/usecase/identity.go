package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/shelfscore/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// identityKeyLength is the number of hex characters kept from the
// digest. 64 bits of key; collisions are negligible at retail-catalog
// scale and the key is not cryptographically sensitive.
const identityKeyLength = 16

// ResolveIdentity derives the stable identity for a (name, brand) pair.
// It is a pure function: equal normalized input always yields the same
// key, and empty input yields the stable "unknown product" identity.
func ResolveIdentity(name, brand string) domain.ProductIdentity {
	normalizedName := normalizeText(name)
	normalizedBrand := normalizeText(brand)

	digest := sha256.Sum256([]byte(normalizedBrand + " " + normalizedName))

	return domain.ProductIdentity{
		IdentityKey:     hex.EncodeToString(digest[:])[:identityKeyLength],
		NormalizedName:  normalizedName,
		NormalizedBrand: normalizedBrand,
	}
}

// normalizeText lowercases, strips punctuation, and collapses whitespace.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
