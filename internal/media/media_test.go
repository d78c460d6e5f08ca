package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image/png", MediaType("/tmp/a.PNG"))
	assert.Equal(t, "image/jpeg", MediaType("photo.jpg"))
	assert.Equal(t, "image/webp", MediaType("x.webp"))
	assert.Equal(t, "image/jpeg", MediaType("noext"))
}

func TestEncodeImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dot.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0644))

	dataURL, mediaType, err := EncodeImage(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
	assert.Greater(t, len(dataURL), len("data:image/png;base64,"))
}

func TestEncodeImageMissingFile(t *testing.T) {
	_, _, err := EncodeImage(filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}
