package pdf

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderer_Render(t *testing.T) {
	renderer := NewRenderer()

	path, err := renderer.Render("CROP PURCHASE CONTRACT\n\nSeller: Ramesh Patel\nBuyer: Anita Rao\nPrice: 200.00")
	assert.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderer_Render_EmptyText(t *testing.T) {
	renderer := NewRenderer()

	path, err := renderer.Render("")
	assert.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
