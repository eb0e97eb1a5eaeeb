package cache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/artpar/modelkit/core/schema"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a stable key for schema text. The text is decoded and
// re-serialized in canonical form first, so layout, comments and quoting do
// not change the key while key order and values do. Text that does not
// decode is hashed as is.
//
// scope separates keys of different kinds computed over the same bytes.
func Fingerprint(data []byte, scope string) string {
	if doc, err := schema.Decode(data); err == nil {
		return sum(scope, doc.Canonical())
	}
	return sum(scope, data)
}

// FileFingerprint returns a key that changes whenever the file at path is
// rewritten: it covers the path, the modification time and the size.
func FileFingerprint(path string) (string, error) {
	key, _, err := fileStamp(path, "file")
	return key, err
}

func fileStamp(path, scope string) (string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat %s: %w", path, err)
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(info.ModTime().UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], uint64(info.Size()))
	return sum(scope, []byte(path), buf[:]), info.Size(), nil
}

func sum(scope string, parts ...[]byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(scope))
	h.Write([]byte{0})
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
