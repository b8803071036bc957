package tiles

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	p := filepath.Join(t.TempDir(), "upload.png")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return p
}

func decodeTile(t *testing.T, store *tilestore.MemoryStore, key string) image.Image {
	t.Helper()
	rc, err := store.Open(context.Background(), key)
	require.NoError(t, err, key)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestMaxZoom(t *testing.T) {
	cases := []struct {
		w, h, want int
	}{
		{1, 1, 0},
		{2, 2, 1},
		{2, 1, 1},
		{256, 256, 8},
		{600, 300, 10},
		{1921, 1081, 11},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MaxZoom(tc.w, tc.h), "MaxZoom(%d,%d)", tc.w, tc.h)
	}
}

func TestLevelSizesRoundHalfUp(t *testing.T) {
	sizes := LevelSizes(600, 300, 10)
	require.Len(t, sizes, 11)
	assert.Equal(t, image.Pt(600, 300), sizes[10])
	assert.Equal(t, image.Pt(75, 38), sizes[7])
	assert.Equal(t, image.Pt(1, 1), sizes[0])
}

func TestBuildPyramidLayout(t *testing.T) {
	store := tilestore.NewMemoryStore("/tiles")
	gen := NewGenerator(logger.Nop(), store, WithWorkers(3))
	src := writePNG(t, 600, 300)

	p, err := gen.BuildPyramid(context.Background(), src, "maps/test")
	require.NoError(t, err)

	assert.Equal(t, "/tiles/maps/test", p.Path)
	assert.Equal(t, 600, p.Width)
	assert.Equal(t, 300, p.Height)
	assert.Equal(t, 10, p.MaxZoom)
	assert.Len(t, p.Keys, store.Len())

	g := goldie.New(t)
	g.Assert(t, "pyramid_600x300_keys", []byte(strings.Join(p.Keys, "\n")+"\n"))

	// Full level: ceil(600/256) x ceil(300/256), last column and row clipped.
	edge := decodeTile(t, store, "maps/test/10-2-1.png")
	assert.Equal(t, 88, edge.Bounds().Dx())
	assert.Equal(t, 44, edge.Bounds().Dy())
	inner := decodeTile(t, store, "maps/test/10-0-0.png")
	assert.Equal(t, 256, inner.Bounds().Dx())

	root := decodeTile(t, store, "maps/test/0-0-0.png")
	assert.Equal(t, image.Pt(1, 1), root.Bounds().Size())

	base := decodeTile(t, store, "maps/test/base.png")
	assert.Equal(t, image.Pt(600, 300), base.Bounds().Size())
	assert.Equal(t, "image/png", store.ContentType("maps/test/base.png"))

	_, statErr := os.Stat(src)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "source image should be removed")
}

func TestBuildPyramidSinglePixel(t *testing.T) {
	store := tilestore.NewMemoryStore("")
	gen := NewGenerator(logger.Nop(), store)

	p, err := gen.BuildPyramid(context.Background(), writePNG(t, 1, 1), "maps/dot")
	require.NoError(t, err)
	assert.Equal(t, 0, p.MaxZoom)
	assert.Equal(t, []string{"maps/dot/0-0-0.png", "maps/dot/base.png"}, p.Keys)
}

func TestBuildPyramidRejectsGarbage(t *testing.T) {
	store := tilestore.NewMemoryStore("")
	gen := NewGenerator(logger.Nop(), store)

	p := filepath.Join(t.TempDir(), "upload.png")
	require.NoError(t, os.WriteFile(p, []byte("not an image"), 0o644))

	_, err := gen.BuildPyramid(context.Background(), p, "maps/bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnprocessableImage)
	assert.Equal(t, 0, store.Len())

	_, statErr := os.Stat(p)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "source image should be removed on failure")
}

func TestBuildPyramidRejectsOversizedSource(t *testing.T) {
	store := tilestore.NewMemoryStore("")
	gen := NewGenerator(logger.Nop(), store, WithMaxPixels(1000))
	src := writePNG(t, 40, 30)

	_, err := gen.BuildPyramid(context.Background(), src, "maps/huge")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnprocessableImage)
	assert.Equal(t, 0, store.Len())

	_, statErr := os.Stat(src)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "source image should be removed on failure")

	// At the limit the build goes through.
	p, err := NewGenerator(logger.Nop(), store, WithMaxPixels(1200)).
		BuildPyramid(context.Background(), writePNG(t, 40, 30), "maps/fits")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Width)
}

type failingStore struct {
	*tilestore.MemoryStore
	failKey string
}

func (s failingStore) Put(ctx context.Context, key string, r io.Reader, ct string) error {
	if key == s.failKey {
		return errors.New("disk full")
	}
	return s.MemoryStore.Put(ctx, key, r, ct)
}

func TestBuildPyramidAbortsOnStoreFailure(t *testing.T) {
	store := failingStore{MemoryStore: tilestore.NewMemoryStore(""), failKey: "maps/x/1-0-0.png"}
	gen := NewGenerator(logger.Nop(), store)
	src := writePNG(t, 4, 4)

	_, err := gen.BuildPyramid(context.Background(), src, "maps/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	// Higher zooms were already written and stay.
	assert.True(t, store.Len() > 0)
	_, statErr := os.Stat(src)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}
