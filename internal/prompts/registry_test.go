package prompts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "v1", r.Version())
	assert.Contains(t, r.Types(), "daily")
	assert.NotContains(t, r.Types(), "saju", "aliases are not listed")

	for _, name := range r.Types() {
		f, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, f.System, name)
		assert.Greater(t, f.Temperature, float32(0), name)
		assert.Greater(t, f.MaxTokens, 0, name)
		assert.NoError(t, f.Validate(f.FallbackPayload()), "fallback of %s must satisfy its schema", name)
	}
}

func TestPoolSpecsHaveValuesForEveryDimension(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	for _, name := range r.Types() {
		f, _ := r.Lookup(name)
		if f.Pool == nil {
			continue
		}
		for _, dim := range f.Pool.Dimensions {
			assert.NotEmpty(t, f.Pool.Values[dim], "%s: dimension %s has no values", name, dim)
		}
	}
}

func TestLookupFollowsAliases(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	saju, ok := r.Lookup("saju")
	require.True(t, ok)
	assert.Equal(t, "traditional-saju", saju.Type)

	assert.Equal(t, "traditional-saju", r.Canonical("saju"))
	assert.Equal(t, "face-reading", r.Canonical("face"))
	assert.Equal(t, "talisman", r.Canonical("talisman"))

	_, ok = r.Lookup("talisman")
	assert.False(t, ok)

	generic := r.Get("talisman")
	assert.Equal(t, "talisman", generic.Type)
	assert.NotEmpty(t, generic.System)
	assert.NotEmpty(t, generic.FallbackPayload())
}

func TestValidateReportsMissingKeys(t *testing.T) {
	t.Parallel()

	f := &Fortune{Required: []string{"summary", "overall_score"}}

	err := f.Validate(map[string]any{"summary": "ok"})
	require.ErrorIs(t, err, ErrMissingKeys)
	assert.Contains(t, err.Error(), "overall_score")

	assert.ErrorIs(t, f.Validate(map[string]any{"summary": nil, "overall_score": 1}), ErrMissingKeys)
	assert.NoError(t, f.Validate(map[string]any{"summary": "ok", "overall_score": 1}))
}

func TestFallbackPayloadIsACopy(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)
	f := r.Get("daily")

	first := f.FallbackPayload()
	first["summary"] = "changed"

	second := f.FallbackPayload()
	assert.NotEqual(t, "changed", second["summary"])

	_, isFloat := second["overall_score"].(float64)
	assert.True(t, isFloat, "numbers use JSON types")
}

func TestUserPromptEmbedsSchema(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	prompt, err := r.Get("love").UserPrompt("love", "ageGroup: 20대, gender: 여")
	require.NoError(t, err)

	assert.Contains(t, prompt, "love")
	assert.Contains(t, prompt, "ageGroup: 20대")

	const marker = "응답 스키마:\n"
	idx := strings.Index(prompt, marker)
	require.GreaterOrEqual(t, idx, 0)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(prompt[idx+len(marker):]), &schema))
	assert.Contains(t, schema, "advice_for_status")
}

func TestParseRejectsBrokenDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "no version", doc: "generic:\n  system: x\n"},
		{name: "no generic", doc: "version: v1\n"},
		{
			name: "fallback misses required key",
			doc: `version: v1
generic: {system: x}
fortunes:
  daily:
    system: y
    required: [summary]
    fallback: {advice: z}
`,
		},
		{
			name: "dangling alias",
			doc: `version: v1
generic: {system: x}
aliases: {saju: traditional-saju}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
