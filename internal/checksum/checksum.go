// Package checksum provides the digests used for ledger bookkeeping and
// content-addressed asset names.
package checksum

import (
	"crypto/md5" //nolint:gosec // naming only, not integrity
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Key returns the upper-case hex MD5 digest of s.
func Key(s string) string {
	h := md5.Sum([]byte(s)) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(h[:]))
}
