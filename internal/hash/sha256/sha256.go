// Package sha256 fingerprints crawled bodies.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
)

// Prefix names the algorithm in every digest so stored hashes stay comparable
// if the algorithm ever changes.
const Prefix = "sha256:"

// Hasher implements crawler.Hasher.
type Hasher struct{}

var _ crawler.Hasher = (*Hasher)(nil)

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns "sha256:" followed by the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
