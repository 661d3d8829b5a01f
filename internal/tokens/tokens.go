package tokens

import (
	"strings"

	"ogn_parser/internal/ogn"
	"ogn_parser/internal/patterns"
)

// The compiled table is built once at package initialisation and only read
// afterwards, so Apply is safe for concurrent use.
var compiler = patterns.NewCompiler(Formats(), nil).MustCompile()

// Apply splits tail on whitespace and stores every recognised token into b.
// Unrecognised tokens are skipped; their number is returned.
func Apply(tail string, b *ogn.Builder) (dropped int) {
	for _, tok := range strings.Fields(tail) {
		m := compiler.Parse(tok)
		if m == nil {
			dropped++
			continue
		}
		Table[m.Index].Apply(m, b)
	}
	return dropped
}

// TokenTrace records how a single token was handled.
type TokenTrace struct {
	Token    string                 // The raw token.
	Matcher  string                 // Name of the matcher that took it, empty if dropped.
	Captures map[string]string      // Captured groups of the winning matcher.
	Attempts []patterns.FormatTrace // Matchers tried, up to and including the winner.
}

// Trace reports, for every token in tail, which matcher accepted it.
// It does not modify any beacon.
func Trace(tail string) []TokenTrace {
	fields := strings.Fields(tail)
	out := make([]TokenTrace, 0, len(fields))
	for _, tok := range fields {
		pt := compiler.ParseWithTrace(tok)
		tt := TokenTrace{Token: tok, Attempts: pt.Formats}
		if pt.Match != nil {
			tt.Matcher = pt.Match.FormatName
			tt.Captures = pt.Match.Captures
		}
		out = append(out, tt)
	}
	return out
}
