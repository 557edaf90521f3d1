package download

import (
	"bytes"
	"io"
)

var (
	zipLocalHeader = []byte{0x50, 0x4B, 0x03, 0x04}
	zipEndOfDir    = []byte{0x50, 0x4B, 0x05, 0x06}
)

// ValidZip reports whether buf starts with a ZIP local file header or an
// end-of-central-directory record. Only the first four bytes are examined.
func ValidZip(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	head := buf[:4]

	return bytes.Equal(head, zipLocalHeader) || bytes.Equal(head, zipEndOfDir)
}

// ValidZipReader is ValidZip for data that is not in memory. It reads
// exactly four bytes from r. A short or failing read counts as invalid.
func ValidZipReader(r io.Reader) bool {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return false
	}

	return ValidZip(head[:])
}
