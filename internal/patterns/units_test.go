package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnits(t *testing.T) {
	assert.InDelta(t, 714.756, FeetToMetres(2345), 1e-9)
	assert.InDelta(t, 118.528, KnotsToKmh(64), 1e-9)
	assert.InDelta(t, 0.1016, FpmToMs(20), 1e-9)
	assert.InDelta(t, -0.79756, FpmToMs(-157), 1e-9)
	assert.Zero(t, FeetToMetres(0))
}
