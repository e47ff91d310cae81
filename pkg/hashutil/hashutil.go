package hashutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"lukechampine.com/blake3"
)

type HashAlgo string

const (
	HashAlgoSHA256  HashAlgo = "sha256"
	HashAlgoBLAKE3  HashAlgo = "blake3"
	HashAlgoXXHash  HashAlgo = "xxhash64"
)

// HashBytes returns the hash of bytes as a hex string using the specified
// algorithm. Supported algorithms: "sha256", "blake3", and "xxhash64".
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	switch algo {
	case HashAlgoSHA256:
		return hashBytesSha256(data), nil
	case HashAlgoBLAKE3:
		return hashBytesBlake3(data), nil
	case HashAlgoXXHash:
		return hashBytesXXHash64(data), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

func hashBytesSha256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hashBytesBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// hashBytesXXHash64 returns the 16-character lowercase hex digest of
// xxhash-64 over data, matching the content-addressing scheme used by
// the content and metadata stores.
func hashBytesXXHash64(data []byte) string {
	sum := xxhash.Sum64(data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return hex.EncodeToString(buf[:])
}
