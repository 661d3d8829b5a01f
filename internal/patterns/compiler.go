// Package patterns provides shared regex patterns and helper functions for OGN parsing.
// This file contains the grok-style pattern compiler.

package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Format represents a token or body format with named capture groups.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler manages pattern compilation and matching for an ordered set of formats.
// Once compiled it is read-only and safe for concurrent use.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a new pattern compiler with the given formats.
// It merges the provided base patterns with the global BasePatterns,
// allowing local patterns to override global ones.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string),
		formats:      make([]Format, len(formats)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	copy(c.formats, formats)

	return c
}

// Compile expands all {PLACEHOLDER} references and compiles regexes.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		expanded := c.expand(c.formats[i].Pattern)
		re, err := regexp.Compile(expanded)
		if err != nil {
			return fmt.Errorf("format %s: %w", c.formats[i].Name, err)
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// MustCompile is like Compile but panics on error. It is intended for
// package-level tables built during initialisation.
func (c *Compiler) MustCompile() *Compiler {
	if err := c.Compile(); err != nil {
		panic(err)
	}
	return c
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (c *Compiler) expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		placeholder := "{" + name + "}"
		result = strings.ReplaceAll(result, placeholder, regex)
	}
	return result
}

// Len returns the number of formats.
func (c *Compiler) Len() int {
	return len(c.formats)
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Index      int               // Position of the matched format in the table
	Text       string            // The whole matched text
	Captures   map[string]string // Named capture group values
}

// Parse tries each compiled format in order and returns the first match,
// or nil if no format matches.
func (c *Compiler) Parse(text string) *Match {
	for i, format := range c.formats {
		if format.Compiled == nil {
			continue
		}

		match := format.Compiled.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		return &Match{
			FormatName: format.Name,
			Index:      i,
			Text:       match[0],
			Captures:   captures(format.Compiled, match),
		}
	}

	return nil
}

// GetCapture is a helper to safely get a capture value with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}

// FormatTrace contains debug information about a format match attempt.
type FormatTrace struct {
	Name     string            // Format name
	Matched  bool              // Whether the pattern matched
	Pattern  string            // The expanded regex pattern
	Captures map[string]string // Captured groups (if matched)
}

// ParseTrace contains complete trace information for a parse attempt.
type ParseTrace struct {
	Formats []FormatTrace // Format match attempts up to and including the first match
	Match   *Match        // The first successful match (if any)
}

// ParseWithTrace behaves like Parse but records every attempt made before the
// first match. This is useful for debugging why a token was dropped.
func (c *Compiler) ParseWithTrace(text string) *ParseTrace {
	trace := &ParseTrace{
		Formats: make([]FormatTrace, 0, len(c.formats)),
	}

	for i, format := range c.formats {
		ft := FormatTrace{
			Name:    format.Name,
			Pattern: c.expand(format.Pattern),
		}

		if format.Compiled == nil {
			trace.Formats = append(trace.Formats, ft)
			continue
		}

		match := format.Compiled.FindStringSubmatch(text)
		if match == nil {
			trace.Formats = append(trace.Formats, ft)
			continue
		}

		ft.Matched = true
		ft.Captures = captures(format.Compiled, match)
		trace.Formats = append(trace.Formats, ft)
		trace.Match = &Match{
			FormatName: format.Name,
			Index:      i,
			Text:       match[0],
			Captures:   ft.Captures,
		}
		break
	}

	return trace
}

func captures(re *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = match[i]
	}
	return out
}
