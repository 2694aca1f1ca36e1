package util

import (
	"crypto/sha256"
	"encoding/hex"
)

const ownerKeyLen = 32

// OwnerKey maps a chat user id ("whatsapp:51999...") to a stable storage
// prefix that does not leak the phone number into object keys or URLs.
func OwnerKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:ownerKeyLen]
}
