package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBatch_GroupsByLocale(t *testing.T) {
	input := `[
		{"nid": 1, "langcode": "en", "title": "One"},
		{"nid": 2, "langcode": "und", "title": "Two"},
		{"nid": 3, "title": "Three"},
		{"nid": 4, "langcode": "en", "title": "Four"}
	]`

	batch, err := ReadBatch(context.Background(), strings.NewReader(input), "langcode", "und")
	require.NoError(t, err)

	require.Len(t, batch["en"], 2)
	assert.Equal(t, "1", batch["en"][0].String("nid"))
	assert.Equal(t, "4", batch["en"][1].String("nid"))
	require.Len(t, batch["und"], 2, "missing locale joins the no-language group")
	assert.Equal(t, "Three", batch["und"][1].String("title"))
}

func TestReadBatch_Malformed(t *testing.T) {
	_, err := ReadBatch(context.Background(), strings.NewReader(`[{"nid": 1},`), "langcode", "und")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read batch")
}

func TestReadBatch_Empty(t *testing.T) {
	batch, err := ReadBatch(context.Background(), strings.NewReader(`[]`), "langcode", "und")
	require.NoError(t, err)
	assert.Empty(t, batch)
}
