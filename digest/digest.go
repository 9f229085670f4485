// Package digest implements the trust engine's streaming file hasher.
//
// It mirrors validate.cpp's sha256sum/md5sum/file_size: a fixed 32 KiB
// buffer, streamed until EOF, no concurrency or retained state between
// calls.
package digest

import (
	"crypto/md5" //nolint:gosec // MD5 is required for legacy repodata checksums, not used for trust decisions.
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// bufSize matches validate.cpp's BUFSIZE constant.
const bufSize = 32 * 1024

// SHA256Sum returns the lowercase hex SHA-256 digest of the file at path.
func SHA256Sum(path string) (string, error) {
	return sumFile(path, sha256.New())
}

// MD5Sum returns the lowercase hex MD5 digest of the file at path.
func MD5Sum(path string) (string, error) {
	return sumFile(path, md5.New())
}

func sumFile(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Bytes returns the lowercase hex SHA-256 digest of data.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MD5Bytes returns the lowercase hex MD5 digest of data.
func MD5Bytes(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// FileSize reports whether the file at path has exactly the expected
// size in bytes. It is the boundary helper named in validate.cpp's
// file_size.
func FileSize(path string, expected int64) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Size() == expected, nil
}
