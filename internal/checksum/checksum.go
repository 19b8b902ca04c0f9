// Package checksum computes content digests for stored assets.
package checksum

import (
	"encoding/hex"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// Sum returns the hex-encoded BLAKE3-256 digest of data.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Reader hashes everything read through it.
type Reader struct {
	r io.Reader
	h hash.Hash
	n int64
}

// NewReader wraps r so the digest of the streamed bytes is available after EOF.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, h: blake3.New()}
}

func (c *Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of the bytes read so far.
func (c *Reader) Sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}

// Size returns the number of bytes read so far.
func (c *Reader) Size() int64 {
	return c.n
}
