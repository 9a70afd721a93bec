// Package dedup computes canonical fingerprints for resolved facts and
// guarantees one shared element per fingerprint, including under
// concurrent creation.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/leasedesk/reconcile/internal/model"
)

var foldCaser = cases.Fold()

// NormalizeName canonicalizes a field name for fingerprinting: full-width
// characters narrowed, case folded, interior whitespace and separator runs
// collapsed to single underscores.
func NormalizeName(name string) string {
	s := width.Narrow.String(name)
	s = foldCaser.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '-', '.', '/':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// Fingerprint returns the deterministic identity key for a logical fact:
// a hex-encoded SHA-256 over (tenant, normalized canonical name, element
// type). Facts from different tenants never share a fingerprint.
func Fingerprint(tenantID, canonicalName string, elementType model.ElementType) string {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeName(canonicalName)))
	h.Write([]byte{0})
	h.Write([]byte(elementType))
	return hex.EncodeToString(h.Sum(nil))
}
