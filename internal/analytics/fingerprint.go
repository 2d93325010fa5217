package analytics

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/admetrica/creativescope/internal/models"
)

// Fingerprint returns a deterministic digest of an analysis request's inputs,
// used for approximate duplicate detection. Identical inputs always hash the
// same across restarts; inputs are length-prefixed so adjacent fields cannot
// collide by concatenation.
func Fingerprint(imageContent, targeting string, objective models.Objective) string {
	h := sha256.New()
	for _, part := range []string{imageContent, targeting, string(objective)} {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(part)))
		h.Write(lenBuf[:])
		io.WriteString(h, part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
