// Package compression gzips XML message bodies on the wire
package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encoding is the HTTP content coding produced by Compressor
const Encoding = "gzip"

// ErrTooLarge is returned when a body inflates past the decompression limit
var ErrTooLarge = errors.New("decompressed body exceeds limit")

// Compressor gzips and inflates message bodies
type Compressor struct {
	level int
	limit int64
}

// NewCompressor creates a compressor with the default level and no
// decompression limit
func NewCompressor() *Compressor {
	return &Compressor{level: gzip.DefaultCompression}
}

// NewCompressorWithLevel creates a compressor with the given gzip level
func NewCompressorWithLevel(level int) *Compressor {
	return &Compressor{level: level}
}

// WithLimit returns a copy of c that refuses to inflate more than limit
// bytes. Zero or less means unlimited.
func (c *Compressor) WithLimit(limit int64) *Compressor {
	cp := *c
	cp.limit = limit
	return &cp
}

// Compress gzips data
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates gzip data
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	var src io.Reader = reader
	if c.limit > 0 {
		src = io.LimitReader(reader, c.limit+1)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to read compressed data: %w", err)
	}
	if c.limit > 0 && int64(buf.Len()) > c.limit {
		return nil, ErrTooLarge
	}

	return buf.Bytes(), nil
}

// IsGzip reports whether a Content-Encoding header value names gzip
func IsGzip(contentEncoding string) bool {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		return true
	}
	return false
}
