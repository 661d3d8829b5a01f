// Package main provides a corpus analyzer for archived OGN beacons.
// It reports the beacon mix, failure kinds and which extension tokens the
// decoder drops, to guide new token matchers.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"ogn_parser/internal/decoder"
	"ogn_parser/internal/storage"
)

const pageSize = 1000

func main() {
	dbPath := pflag.String("db", "ogn_beacons.db", "SQLite archive file")
	outputFormat := pflag.String("format", "text", "Output format: text, json")
	topN := pflag.Int("top", 20, "Show top N items in each category")
	beaconType := pflag.String("type", "", "Analyze one beacon type only")
	testPattern := pflag.String("test", "", "Test a regex against the dropped tokens")

	pflag.Parse()

	db, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "Analyzing archive...\n")

	rows, err := loadAll(db, *beaconType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading archive: %v\n", err)
		os.Exit(1)
	}

	// Pattern testing mode.
	if *testPattern != "" {
		re, err := regexp.Compile(*testPattern)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid pattern: %v\n", err)
			os.Exit(1)
		}
		matches, total, samples := TestPattern(rows, re)
		fmt.Printf("Pattern: %s\n", *testPattern)
		if total == 0 {
			fmt.Println("Result: no dropped tokens")
			return
		}
		fmt.Printf("Result: %d/%d dropped tokens match (%.1f%%)\n\n", matches, total, float64(matches)/float64(total)*100)
		if len(samples) > 0 {
			fmt.Printf("Sample matches: %v\n", samples)
		}
		return
	}

	report := Analyze(rows, *topN)
	if st, err := db.GetStats(); err == nil {
		report.TopSources = topCounts(st.TopSources, *topN)
	}

	if *outputFormat == "json" {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else {
		printTextReport(report)
	}
}

// AnalysisReport contains all analysis results.
type AnalysisReport struct {
	Summary          SummaryStats `json:"summary"`
	TypeDistribution []Count      `json:"type_distribution"`
	FailureKinds     []Count      `json:"failure_kinds"`
	TopSources       []Count      `json:"top_sources,omitempty"`
	MatcherCoverage  []Count      `json:"matcher_coverage"`
	DroppedTokens    []TokenCount `json:"dropped_tokens"`
	FailedTemplates  []TokenCount `json:"failed_templates"`
}

type SummaryStats struct {
	TotalLines    int     `json:"total_lines"`
	ParsedLines   int     `json:"parsed_lines"`
	FailedLines   int     `json:"failed_lines"`
	ParseRate     float64 `json:"parse_rate"`
	UniqueSources int     `json:"unique_sources"`
	TokensSeen    int     `json:"tokens_seen"`
	TokensDropped int     `json:"tokens_dropped"`
}

type Count struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Pct   float64 `json:"percentage"`
}

type TokenCount struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
	Example  string `json:"example"`
}

func loadAll(db *storage.SQLiteDB, beaconType string) ([]storage.ArchivedBeacon, error) {
	var all []storage.ArchivedBeacon
	for offset := 0; ; offset += pageSize {
		page, err := db.Query(storage.QueryParams{BeaconType: beaconType, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// Analyze re-traces every archived line and aggregates the results.
func Analyze(rows []storage.ArchivedBeacon, topN int) *AnalysisReport {
	report := &AnalysisReport{}
	types := map[string]int{}
	kinds := map[string]int{}
	sources := map[string]bool{}
	matchers := map[string]int{}
	dropped := map[string]*TokenCount{}
	failed := map[string]*TokenCount{}

	for _, r := range rows {
		report.Summary.TotalLines++
		sources[r.SourceID] = true

		if r.ErrorKind != "" {
			report.Summary.FailedLines++
			kinds[r.ErrorKind]++
			addTemplate(failed, payloadTemplate(r.RawLine), r.RawLine)
			continue
		}
		report.Summary.ParsedLines++
		types[r.BeaconType]++

		for _, tok := range traceTokens(r) {
			report.Summary.TokensSeen++
			if tok.matcher != "" {
				matchers[tok.matcher]++
				continue
			}
			report.Summary.TokensDropped++
			addTemplate(dropped, normaliseToTemplate(tok.token), tok.token)
		}
	}

	if report.Summary.TotalLines > 0 {
		report.Summary.ParseRate = float64(report.Summary.ParsedLines) / float64(report.Summary.TotalLines) * 100
	}
	delete(sources, "")
	report.Summary.UniqueSources = len(sources)
	report.TypeDistribution = topCounts(types, topN)
	report.FailureKinds = topCounts(kinds, topN)
	report.MatcherCoverage = topCounts(matchers, topN)
	report.DroppedTokens = topTemplates(dropped, topN)
	report.FailedTemplates = topTemplates(failed, topN)
	return report
}

type tracedToken struct {
	token   string
	matcher string
}

// traceTokens decodes the line again against its own timestamp and returns
// how the selected parser handled each extension token.
func traceTokens(r storage.ArchivedBeacon) []tracedToken {
	ref := r.Timestamp
	if ref.IsZero() {
		ref = r.ReceivedAt
	}
	if ref.IsZero() {
		ref = time.Now()
	}

	var out []tracedToken
	for _, p := range decoder.TraceAt(r.RawLine, ref).Parsers {
		if !p.Matched {
			continue
		}
		for _, tok := range p.Tokens {
			out = append(out, tracedToken{token: tok.Token, matcher: tok.Matcher})
		}
	}
	return out
}

// TestPattern reports how many dropped tokens re matches, with a few samples.
func TestPattern(rows []storage.ArchivedBeacon, re *regexp.Regexp) (matches, total int, samples []string) {
	for _, r := range rows {
		if r.ErrorKind != "" {
			continue
		}
		for _, tok := range traceTokens(r) {
			if tok.matcher != "" {
				continue
			}
			total++
			if re.MatchString(tok.token) {
				matches++
				if len(samples) < 10 {
					samples = append(samples, tok.token)
				}
			}
		}
	}
	return matches, total, samples
}

var (
	digitRun  = regexp.MustCompile(`[0-9]+`)
	letterRun = regexp.MustCompile(`[A-Za-z]{4,}`)
)

// normaliseToTemplate collapses digit runs to 9 and long words to A, so
// "hear1084" and "hearB597" both become "A9".
func normaliseToTemplate(tok string) string {
	t := digitRun.ReplaceAllString(tok, "9")
	return letterRun.ReplaceAllString(t, "A")
}

// payloadTemplate is the template of the first characters of the payload,
// enough to tell timestamp and position layouts apart.
func payloadTemplate(line string) string {
	payload := line
	if i := strings.Index(line, ":"); i >= 0 {
		payload = line[i+1:]
	}
	if len(payload) > 20 {
		payload = payload[:20]
	}
	return digitRun.ReplaceAllStringFunc(payload, func(s string) string { return strings.Repeat("9", len(s)) })
}

func addTemplate(m map[string]*TokenCount, template, example string) {
	tc, ok := m[template]
	if !ok {
		tc = &TokenCount{Template: template, Example: truncate(example, 100)}
		m[template] = tc
	}
	tc.Count++
}

func topCounts(m map[string]int, topN int) []Count {
	total := 0
	for _, n := range m {
		total += n
	}
	out := make([]Count, 0, len(m))
	for name, n := range m {
		c := Count{Name: name, Count: n}
		if total > 0 {
			c.Pct = float64(n) / float64(total) * 100
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func topTemplates(m map[string]*TokenCount, topN int) []TokenCount {
	out := make([]TokenCount, 0, len(m))
	for _, tc := range m {
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Template < out[j].Template
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func printTextReport(report *AnalysisReport) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                    OGN ARCHIVE ANALYSIS")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	fmt.Println("SUMMARY")
	fmt.Println("───────")
	s := report.Summary
	fmt.Printf("Total Lines:        %d\n", s.TotalLines)
	fmt.Printf("Parsed:             %d (%.1f%%)\n", s.ParsedLines, s.ParseRate)
	fmt.Printf("Failed:             %d\n", s.FailedLines)
	fmt.Printf("Unique Sources:     %d\n", s.UniqueSources)
	fmt.Printf("Tokens Seen:        %d\n", s.TokensSeen)
	fmt.Printf("Tokens Dropped:     %d\n", s.TokensDropped)
	fmt.Println()

	printCounts("BEACON TYPES", "Type", report.TypeDistribution)
	printCounts("FAILURE KINDS", "Kind", report.FailureKinds)
	printCounts("TOP SOURCES", "Source", report.TopSources)
	printCounts("MATCHER COVERAGE (Tokens taken per matcher)", "Matcher", report.MatcherCoverage)

	printTemplates("DROPPED TOKENS (Not taken by any matcher)", report.DroppedTokens)
	printTemplates("FAILED LINES (Payload shapes)", report.FailedTemplates)
}

func printCounts(title, column string, counts []Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Println(title)
	fmt.Println(strings.Repeat("─", len(title)))
	fmt.Printf("%-24s %10s %8s\n", column, "Count", "Pct")
	for _, c := range counts {
		fmt.Printf("%-24s %10d %7.1f%%\n", c.Name, c.Count, c.Pct)
	}
	fmt.Println()
}

func printTemplates(title string, templates []TokenCount) {
	if len(templates) == 0 {
		return
	}
	fmt.Println(title)
	fmt.Println(strings.Repeat("─", len(title)))
	for _, t := range templates {
		fmt.Printf("  [%d] %-24s e.g. %s\n", t.Count, t.Template, t.Example)
	}
	fmt.Println()
}
