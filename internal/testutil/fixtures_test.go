package testutil

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/linecheck/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestDefaultSceneFixtures(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range DefaultSceneFixtures() {
		assert.False(t, seen[f.Name], "duplicate fixture %s", f.Name)
		seen[f.Name] = true
		assert.NotEmpty(t, f.Serial)
	}
	assert.True(t, seen["clean"])
}

func TestRenderFixture(t *testing.T) {
	img, err := RenderFixture(FindFixture(t, "clean"))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())

	img, err = RenderFixture(FindFixture(t, "code128"))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())

	_, err = RenderFixture(SceneFixture{Name: "bad", Serial: "SN-1", Codec: "rot13"})
	assert.Error(t, err)
}

func TestWriteAndLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteFixtures(dir, DefaultSceneFixtures())
	require.NoError(t, err)

	loaded, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, written, loaded)

	for _, f := range loaded {
		path := filepath.Join(dir, f.InputFile)
		require.True(t, FileExists(path), path)
		_, meta, err := utils.LoadImage(path)
		require.NoError(t, err)
		assert.Equal(t, 640, meta.Width)
	}
}

func TestFixtureFrame(t *testing.T) {
	fr := FixtureFrame(t, FindFixture(t, "ink_bleed"))
	assert.Equal(t, 640, fr.Width())
	assert.NoError(t, fr.Validate())
}
