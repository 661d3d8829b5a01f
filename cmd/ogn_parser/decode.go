package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"ogn_parser/internal/ddb"
	"ogn_parser/internal/decoder"
	"ogn_parser/internal/enrichment"
	"ogn_parser/internal/feed"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/registry"
	"ogn_parser/internal/storage"
)

type DecodeOut struct {
	Line      string                    `json:"line"`
	Type      string                    `json:"type,omitempty"`
	Beacon    ogn.Beacon                `json:"beacon,omitempty"`
	Sighting  *storage.AircraftSighting `json:"sighting,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorKind string                    `json:"error_kind,omitempty"`
	Trace     []TraceOut                `json:"trace,omitempty"`
}

// TraceOut is one parser's view of a line.
type TraceOut struct {
	Parser     string     `json:"parser"`
	QuickCheck bool       `json:"quick_check"`
	Reason     string     `json:"reason,omitempty"`
	Matched    bool       `json:"matched"`
	Error      string     `json:"error,omitempty"`
	Tokens     []TokenOut `json:"tokens,omitempty"`
}

type TokenOut struct {
	Token    string            `json:"token"`
	Matcher  string            `json:"matcher,omitempty"` // Empty when the token was dropped.
	Captures map[string]string `json:"captures,omitempty"`
}

type DecodeStats struct {
	Lines     int
	Parsed    int
	Oversized int
	ByType    map[string]int
	ByKind    map[string]int
}

func runDecode(args []string) {
	fs := pflag.NewFlagSet("decode", pflag.ExitOnError)
	inPath := fs.StringP("input", "i", "", "Input file, optionally .gz (default: stdin)")
	outPath := fs.StringP("output", "o", "", "Output file (default: stdout)")
	refStr := fs.String("ref", "", "Reference time for time-of-day stamps, RFC 3339 or YYYY-MM-DD (default: now)")
	ddbLocator := fs.String("ddb", "", "Device database file or URL; adds the enriched sighting to aircraft beacons")
	trace := fs.Bool("trace", false, "Include parser and token trace for every line")
	failedOnly := fs.Bool("failed", false, "Only write lines that failed to decode")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	showStats := fs.Bool("stats", false, "Print counters to stderr")
	_ = fs.Parse(args)

	ref, err := parseRef(*refStr, time.Now().UTC())
	if err != nil {
		fatalf("Invalid --ref: %v", err)
	}

	ctx := context.Background()

	var lookup enrichment.DescriptorLookup
	if *ddbLocator != "" {
		lookup = ddb.NewProvider(ctx, ddb.FileStore, *ddbLocator, 0, nil)
	}

	r, err := feed.OpenFile(*inPath)
	if err != nil {
		fatalf("Failed to open input: %v", err)
	}
	defer r.Close()

	var w io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fatalf("Failed to create output: %v", err)
		}
		defer f.Close()
		w = f
	}

	lines := make(chan string, 256)
	readErr := make(chan error, 1)
	var lr feed.LineReader
	go func() {
		readErr <- lr.Read(ctx, r, lines)
		close(lines)
	}()

	enc := json.NewEncoder(w)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	st := &DecodeStats{ByType: map[string]int{}, ByKind: map[string]int{}}
	for line := range lines {
		out := decodeLine(line, ref, *trace, lookup)
		st.Lines++
		if out.Error == "" {
			st.Parsed++
			st.ByType[out.Type]++
		} else {
			st.ByKind[out.ErrorKind]++
		}

		if *failedOnly && out.Error == "" {
			continue
		}
		if err := enc.Encode(out); err != nil {
			fatalf("JSON encode error: %v", err)
		}
	}

	if err := <-readErr; err != nil {
		fatalf("Input read error: %v", err)
	}
	st.Oversized = lr.Oversized

	if *showStats {
		printDecodeStats(os.Stderr, st)
	}
}

func decodeLine(line string, ref time.Time, trace bool, lookup enrichment.DescriptorLookup) DecodeOut {
	out := DecodeOut{Line: line}

	var (
		b   ogn.Beacon
		err error
	)
	if trace {
		tr := decoder.TraceAt(line, ref)
		b, err = tr.Beacon, tr.Err
		out.Trace = traceToOut(tr.Parsers)
	} else {
		b, err = decoder.ParseAt(line, ref)
	}

	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = ogn.Kind(err)
		return out
	}

	out.Type = b.Type()
	out.Beacon = b
	if ab, ok := b.(ogn.AircraftBeacon); ok && lookup != nil {
		out.Sighting = enrichment.ExtractEnrichment(ab, lookup)
	}
	return out
}

func traceToOut(results []*registry.TraceResult) []TraceOut {
	out := make([]TraceOut, 0, len(results))
	for _, r := range results {
		t := TraceOut{Parser: r.ParserName, Matched: r.Matched}
		if r.QuickCheck != nil {
			t.QuickCheck = r.QuickCheck.Passed
			t.Reason = r.QuickCheck.Reason
		}
		if r.Err != nil {
			t.Error = r.Err.Error()
		}
		for _, tok := range r.Tokens {
			t.Tokens = append(t.Tokens, TokenOut{Token: tok.Token, Matcher: tok.Matcher, Captures: tok.Captures})
		}
		out = append(out, t)
	}
	return out
}

// parseRef accepts a full RFC 3339 time or a bare date, which is taken as
// noon UTC so time-of-day stamps resolve to the same day.
func parseRef(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return d.Add(12 * time.Hour), nil
}

func printDecodeStats(w io.Writer, st *DecodeStats) {
	fmt.Fprintf(w, "stats: lines=%d parsed=%d failed=%d\n", st.Lines, st.Parsed, st.Lines-st.Parsed)
	if st.Oversized > 0 {
		fmt.Fprintf(w, "  skipped %d oversized lines\n", st.Oversized)
	}
	for _, k := range sortedKeys(st.ByType) {
		fmt.Fprintf(w, "  type %-18s %d\n", k, st.ByType[k])
	}
	for _, k := range sortedKeys(st.ByKind) {
		fmt.Fprintf(w, "  error %-17s %d\n", k, st.ByKind[k])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
