package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinationUID(t *testing.T) {
	tests := []struct {
		affix, id, want string
	}{
		{"article", "About Us", "about_us"},
		{"article", "my-page", "my_page"},
		{"article", "12", "article_12"},
		{"Blog Post", "7-a", "blog_post_7_a"},
		{"", "12", "entry_12"},
		{"article", "  Node ", "node"},
		{"article", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DestinationUID(tt.affix, tt.id), "affix=%q id=%q", tt.affix, tt.id)
	}
}

func TestSplitSuffix(t *testing.T) {
	base, suffix, ok := splitSuffix("field_image_target_id")
	assert.True(t, ok)
	assert.Equal(t, "field_image", base)
	assert.Equal(t, SuffixTargetID, suffix)

	_, _, ok = splitSuffix("_value")
	assert.False(t, ok, "a bare suffix has no base")

	assert.True(t, isDiscarded("body_format"))
	assert.True(t, isDiscarded("field_x_revision_id"))
	assert.False(t, isDiscarded("format"))
}
