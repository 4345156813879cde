package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaai/pharmadb/pkg/types"
)

func TestDerivePoints(t *testing.T) {
	points := []types.Record{
		{"measurement_value": 98.5, "standard_min": 90.0, "standard_max": 110.0},
		{"measurement_value": 120.0, "standard_min": 90.0, "standard_max": 110.0},
		{"measurement_value": 50.0}, // no range
		{"measurement_value": 0.0, "standard_min": 90.0, "standard_max": 110.0, "is_qualified": true},
	}
	out := derivePoints(points)
	require.Len(t, out, 4)

	assert.Equal(t, true, out[0]["is_qualified"])
	assert.Equal(t, false, out[1]["is_qualified"])
	_, has := out[2]["is_qualified"]
	assert.False(t, has)
	// A caller-provided flag is never recomputed.
	assert.Equal(t, true, out[3]["is_qualified"])
}

func TestDefaultGeneratorOptions(t *testing.T) {
	opts := DefaultGeneratorOptions()
	assert.Positive(t, opts.Items)
	assert.Positive(t, opts.Inspectors)
	assert.Positive(t, opts.Laboratories)
	assert.Positive(t, opts.Conversations)
	assert.Positive(t, opts.Experiments)
}

func TestGeneratorVocabularyAligned(t *testing.T) {
	// Herb names and pinyin run in parallel; a mismatch would pair the
	// wrong transliteration.
	require.Equal(t, len(herbNames), len(herbPinyin))
	require.Equal(t, len(measurementTypes), len(measurementUnits))
}
