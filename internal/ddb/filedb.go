package ddb

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
)

// DefaultURL is the public OGN device database export.
const DefaultURL = "http://ddb.glidernet.org/download/"

// FileDB loads the DDB CSV export from a local path or an http(s) URL.
// Gzip-compressed sources are detected by their magic bytes.
type FileDB struct {
	locator string
	client  *http.Client
	index   atomic.Pointer[map[string]Descriptor]
}

// NewFileDB returns an empty FileDB for locator. Call Reload to load it.
func NewFileDB(locator string) (*FileDB, error) {
	if locator == "" {
		locator = DefaultURL
	}
	if isURL(locator) {
		if _, err := url.Parse(locator); err != nil {
			return nil, fmt.Errorf("invalid ddb url %q: %w", locator, err)
		}
	}
	f := &FileDB{
		locator: locator,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	empty := map[string]Descriptor{}
	f.index.Store(&empty)
	return f, nil
}

// FileStore is a StoreFactory for FileDB.
func FileStore(locator string) (Store, error) {
	return NewFileDB(locator)
}

func (f *FileDB) URL() string { return f.locator }

// Len returns the number of loaded descriptors.
func (f *FileDB) Len() int { return len(*f.index.Load()) }

func (f *FileDB) Descriptor(address string) (Descriptor, bool) {
	d, ok := (*f.index.Load())[address]
	return d, ok
}

// All returns a copy of the loaded descriptors.
func (f *FileDB) All() []Descriptor {
	idx := *f.index.Load()
	out := make([]Descriptor, 0, len(idx))
	for _, d := range idx {
		out = append(out, d)
	}
	return out
}

func (f *FileDB) Reload(ctx context.Context) error {
	rc, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	r, err := decompress(rc)
	if err != nil {
		return fmt.Errorf("read ddb %s: %w", f.locator, err)
	}
	defer r.Close()

	descs, err := ReadCSV(r)
	if err != nil {
		return fmt.Errorf("read ddb %s: %w", f.locator, err)
	}

	idx := make(map[string]Descriptor, len(descs))
	for _, d := range descs {
		idx[d.Address] = d
	}
	f.index.Store(&idx)
	return nil
}

func (f *FileDB) open(ctx context.Context) (io.ReadCloser, error) {
	if !isURL(f.locator) {
		file, err := os.Open(f.locator)
		if err != nil {
			return nil, fmt.Errorf("open ddb: %w", err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build ddb request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ddb: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch ddb: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func isURL(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// decompress returns r unchanged unless it starts with the gzip magic. Closing
// the result does not close r.
func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return io.NopCloser(br), nil
}

// ReadCSV parses the DDB export format:
//
//	#DEVICE_TYPE,DEVICE_ID,AIRCRAFT_MODEL,REGISTRATION,CN,TRACKED,IDENTIFIED
//	'F','DD1234','ASK-21','D-1234','AB','Y','Y'
//
// Rows with fewer than two columns or an empty device id are skipped.
func ReadCSV(r io.Reader) ([]Descriptor, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var out []Descriptor
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			continue
		}
		d := Descriptor{
			DeviceType: unquote(rec[0]),
			Address:    NormaliseAddress(unquote(rec[1])),
		}
		if d.Address == "" {
			continue
		}
		if len(rec) > 2 {
			d.Model = unquote(rec[2])
		}
		if len(rec) > 3 {
			d.Registration = unquote(rec[3])
		}
		if len(rec) > 4 {
			d.CN = unquote(rec[4])
		}
		if len(rec) > 5 {
			d.Tracked = unquote(rec[5]) == "Y"
		}
		if len(rec) > 6 {
			d.Identified = unquote(rec[6]) == "Y"
		}
		out = append(out, d)
	}
}

func unquote(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "'"))
}
