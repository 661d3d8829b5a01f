package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFormats = []Format{
	{Name: "climb", Pattern: `^(?P<fpm>{SINT})fpm$`},
	{Name: "signal", Pattern: `^(?P<db>{DEC})dB$`},
	{Name: "local", Pattern: `^(?P<word>{WORD})$`},
}

func TestCompiler_Parse(t *testing.T) {
	c := NewCompiler(testFormats, map[string]string{"WORD": `[a-z]+`}).MustCompile()
	require.Equal(t, 3, c.Len())

	m := c.Parse("+020fpm")
	require.NotNil(t, m)
	assert.Equal(t, "climb", m.FormatName)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, "+020fpm", m.Text)
	assert.Equal(t, "+020", m.GetCapture("fpm", ""))

	m = c.Parse("hello")
	require.NotNil(t, m)
	assert.Equal(t, "local", m.FormatName)
	assert.Equal(t, 2, m.Index)

	assert.Nil(t, c.Parse("16.8db"))
	var none *Match
	assert.Equal(t, "x", none.GetCapture("db", "x"))
}

func TestCompiler_CompileError(t *testing.T) {
	c := NewCompiler([]Format{{Name: "broken", Pattern: `^(unclosed`}}, nil)
	err := c.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Panics(t, func() { c.MustCompile() })
}

func TestCompiler_ParseWithTrace(t *testing.T) {
	c := NewCompiler(testFormats, map[string]string{"WORD": `[a-z]+`}).MustCompile()

	trace := c.ParseWithTrace("16.8dB")
	require.NotNil(t, trace.Match)
	assert.Equal(t, "signal", trace.Match.FormatName)
	require.Len(t, trace.Formats, 2)
	assert.False(t, trace.Formats[0].Matched)
	assert.True(t, trace.Formats[1].Matched)
	assert.Equal(t, "16.8", trace.Formats[1].Captures["db"])
	assert.Equal(t, `^(?P<db>\d+\.\d+)dB$`, trace.Formats[1].Pattern)

	trace = c.ParseWithTrace("???")
	assert.Nil(t, trace.Match)
	assert.Len(t, trace.Formats, 3)
}
