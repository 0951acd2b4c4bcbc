package modelmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The worked scenario: p_win=0.20, odds=8.0 gives EV=1.6, clears the 1.5
// break-even threshold, staking 100 for an expected return of 160.
func TestEVQualifiesWorkedExample(t *testing.T) {
	assert.True(t, evQualifies(0.20, 8.0))
}

func TestEVQualifiesAtThreshold(t *testing.T) {
	assert.True(t, evQualifies(0.30, 5.0)) // exactly 1.5
}

func TestEVQualifiesBelowThreshold(t *testing.T) {
	assert.False(t, evQualifies(0.10, 9.0)) // 0.9, well under
	assert.False(t, evQualifies(0.25, 5.9)) // 1.475, just under 1.5
}
