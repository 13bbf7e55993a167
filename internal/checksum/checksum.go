package checksum

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
)

// Reader hashes everything read through it. The digest is the one of the
// bytes actually handed to the remote, so it stays accurate even when the
// local file changes mid-upload.
type Reader struct {
	reader io.Reader
	hash   hash.Hash
	n      int64
	done   bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		reader: r,
		hash:   sha256.New(),
	}
}

// Read implements io.Reader
func (t *Reader) Read(p []byte) (n int, err error) {
	n, err = t.reader.Read(p)
	if n > 0 {
		t.hash.Write(p[:n])
		t.n += int64(n)
	}
	if err == io.EOF {
		t.done = true
	}
	return n, err
}

// BytesRead returns how many bytes have passed through so far.
func (t *Reader) BytesRead() int64 {
	return t.n
}

// Checksum returns the base64 SHA-256 of the stream (only valid after EOF)
func (t *Reader) Checksum() (string, error) {
	if !t.done {
		return "", fmt.Errorf("checksum not yet calculated (read not complete)")
	}
	return base64.StdEncoding.EncodeToString(t.hash.Sum(nil)), nil
}
