package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAddressToken(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"/165202h4429.25S/16959.33E'/A=001407 id05C821EA +020fpm", true},
		{"id05C821EA", true},
		{"+020fpm id0b202e5d", true},
		{"idle 05C821EA", false},
		{"id05C821E", false},
		{"xid05C821EA", false},
		{"id05C821EAB", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAddressToken(tt.text))
		})
	}
}

func TestHasVersionToken(t *testing.T) {
	assert.True(t, HasVersionToken(" v0.2.6.ARM CPU:0.8"))
	assert.True(t, HasVersionToken("v0.2.5"))
	assert.False(t, HasVersionToken(" CPU:0.8 dev0.2.6"))
	assert.False(t, HasVersionToken(" v0.2"))
}

func TestIsReceiverPosition(t *testing.T) {
	assert.True(t, IsReceiverPosition("/042136h3322.81SI07034.95W&/A=002345 v0.2.5.ARM"))
	assert.True(t, IsReceiverPosition("/153724h4539.76NI00620.80E&/A=001246"))
	assert.False(t, IsReceiverPosition("/165202h4429.25S/16959.33E'/A=001407"))
	assert.False(t, IsReceiverPosition("/042136h3322.81SI07034.95W&000/000/A=002345"))
	assert.False(t, IsReceiverPosition(">042136h v0.2.5.ARM"))
	assert.False(t, IsReceiverPosition("/042136h"))
}
