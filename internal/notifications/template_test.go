package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRendererRendersBindings(t *testing.T) {
	r := NewTemplateRenderer()
	out, err := r.Render("Hello {{ name }}!", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice!", out)
}

func TestTemplateRendererEmptySourceRendersEmpty(t *testing.T) {
	r := NewTemplateRenderer()
	out, err := r.Render("", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestTemplateRendererCachesParsedTemplate(t *testing.T) {
	r := NewTemplateRenderer()
	src := "Hi {{ name }}"

	out1, err := r.Render(src, map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", out1)

	out2, err := r.Render(src, map[string]any{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bob", out2)
}

func TestTemplateRendererDefaultFilter(t *testing.T) {
	r := NewTemplateRenderer()
	out, err := r.Render("{{ name | default: 'Anonymous' }}", map[string]any{"name": nil})
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", out)
}

func TestTemplateRendererTruncateFilter(t *testing.T) {
	r := NewTemplateRenderer()
	out, err := r.Render("{{ text | truncate: 5 }}", map[string]any{"text": "abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, "ab...", out)
}

func TestTemplateRendererUrlencodeFilter(t *testing.T) {
	r := NewTemplateRenderer()
	out, err := r.Render("{{ q | urlencode }}", map[string]any{"q": "a b&c"})
	require.NoError(t, err)
	assert.Equal(t, "a+b%26c", out)
}

func TestTemplateRendererRelativeTimeFilter(t *testing.T) {
	r := NewTemplateRenderer()
	out, err := r.Render("{{ t | relative_time }}", map[string]any{"t": time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, "just now", out)
}

func TestTemplateRendererParseErrorPropagates(t *testing.T) {
	r := NewTemplateRenderer()
	_, err := r.Render("{% unknown_tag %}", nil)
	require.Error(t, err)
}
