package remote

import (
	"bufio"
	"io"
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

const sniffLen = 512

// detectContentType picks the Content-Type for an upload. A known extension
// wins; otherwise the first bytes are sniffed. The returned reader yields
// the full content, sniffed bytes included.
func detectContentType(name string, r io.Reader) (string, io.Reader) {
	if ext := path.Ext(name); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t, r
		}
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	if len(head) == 0 {
		return "", br
	}
	return mimetype.Detect(head).String(), br
}
