package formfill

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyImage produces an image that JPEG cannot compress well, forcing the
// quality loop to actually step down.
func noisyImage(t *testing.T, dir string) string {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	path := filepath.Join(dir, "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestCompressImageUnderBudget(t *testing.T) {
	path := noisyImage(t, t.TempDir())

	out, err := CompressImage(path, 100)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "photo_compressed.jpg"), out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(100*1024))
}

func TestCompressImageQualityFloorStopsLoop(t *testing.T) {
	path := noisyImage(t, t.TempDir())

	// A budget no photo can meet; the floor must still terminate the loop
	// and produce a file.
	out, err := CompressImage(path, 1)
	require.NoError(t, err)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCompressImageMissingFile(t *testing.T) {
	_, err := CompressImage(filepath.Join(t.TempDir(), "nope.png"), 300)
	assert.Error(t, err)
}

func TestCompressImageGarbageInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err := CompressImage(path, 300)
	assert.Error(t, err)
}
