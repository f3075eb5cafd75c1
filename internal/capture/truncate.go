package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// urlDigest is a recorded URL, cut to a byte budget. A cut URL keeps the
// size and sha256 of the full value so records can still be correlated.
type urlDigest struct {
	Value     string
	Truncated bool
	Size      int
	SHA256    string
}

// digestURL cuts raw to at most maxBytes on a rune boundary. maxBytes <= 0
// disables the limit.
func digestURL(raw string, maxBytes int) urlDigest {
	if maxBytes <= 0 || len(raw) <= maxBytes {
		return urlDigest{Value: raw, Size: len(raw)}
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	sum := sha256.Sum256([]byte(raw))
	return urlDigest{
		Value:     raw[:cut],
		Truncated: true,
		Size:      len(raw),
		SHA256:    hex.EncodeToString(sum[:]),
	}
}
