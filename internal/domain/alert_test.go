package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholds(t *testing.T) {
	floor, second, ok := Thresholds([]float64{10, 12, 15})
	assert.True(t, ok)
	assert.InDelta(t, 10.0, floor, 1e-9)
	assert.InDelta(t, 12.0, second, 1e-9)
}

func TestThresholdsRequiresTwoRows(t *testing.T) {
	_, _, ok := Thresholds([]float64{10})
	assert.False(t, ok)

	_, _, ok = Thresholds(nil)
	assert.False(t, ok)
}
