package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"ogn_parser/internal/aprs"
)

// OpenFile opens a feed capture. Names ending in ".gz" are decompressed;
// "-" or "" reads stdin.
func OpenFile(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open feed %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

// DefaultMaxLineLen bounds a single feed line. Real beacons are a few hundred
// bytes.
const DefaultMaxLineLen = 1024 * 1024

// LineReader reads feed lines. Lines longer than MaxLineLen are skipped and
// counted in Oversized instead of ending the read.
type LineReader struct {
	MaxLineLen int // Zero means DefaultMaxLineLen.
	Oversized  int
}

// ReadLines sends each non-empty, non-comment line of r to out until r is
// exhausted or ctx is cancelled.
func ReadLines(ctx context.Context, r io.Reader, out chan<- string) error {
	var lr LineReader
	return lr.Read(ctx, r, out)
}

// Read is ReadLines with the reader's length limit applied.
func (lr *LineReader) Read(ctx context.Context, r io.Reader, out chan<- string) error {
	limit := lr.MaxLineLen
	if limit <= 0 {
		limit = DefaultMaxLineLen
	}
	br := bufio.NewReaderSize(r, 64*1024)

	var buf []byte
	oversized := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > limit+2 { // Room for the CRLF.
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("read feed: %w", err)
		}

		if oversized {
			lr.Oversized++
		} else if line := strings.TrimRight(string(buf), "\r\n"); strings.TrimSpace(line) != "" && !aprs.IsComment(line) {
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		buf = buf[:0]
		oversized = false

		if err == io.EOF {
			return nil
		}
	}
}
