// Package tiles cuts a floor-plan raster into a zoomable pyramid of PNG tiles.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	// Registered decoders for uploaded floor plans.
	_ "image/jpeg"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/indoormap-backend/internal/observability"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

const (
	DefaultTileSize = 256
	BaseName        = "base.png"
	// DefaultMaxPixels bounds the decoded source at roughly 256MiB of NRGBA.
	DefaultMaxPixels int64 = 64 << 20
)

// ErrUnprocessableImage is returned when the source cannot be decoded or has
// no area.
var ErrUnprocessableImage = errors.New("unprocessable image")

type Pyramid struct {
	Path    string
	Width   int
	Height  int
	MaxZoom int
	// Keys lists every object written, sorted.
	Keys []string
}

type Builder interface {
	BuildPyramid(ctx context.Context, imagePath, storageKey string) (*Pyramid, error)
}

type Generator struct {
	log      *logger.Logger
	store    tilestore.Store
	tileSize int
	workers   int
	maxPixels int64
	encoder   *png.Encoder
}

type Option func(*Generator)

func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

func WithTileSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.tileSize = n
		}
	}
}

// WithMaxPixels caps width*height of a source image. Larger sources are
// rejected from their header before any pixel is decoded.
func WithMaxPixels(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxPixels = n
		}
	}
}

func NewGenerator(log *logger.Logger, store tilestore.Store, opts ...Option) *Generator {
	g := &Generator{
		log:       log.With("service", "TileGenerator"),
		store:     store,
		tileSize:  DefaultTileSize,
		workers:   4,
		maxPixels: DefaultMaxPixels,
		encoder:   &png.Encoder{CompressionLevel: png.BestSpeed},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildPyramid writes {storageKey}/{zoom}-{col}-{row}.png for every zoom
// level plus {storageKey}/base.png. imagePath is removed once the build ends,
// whatever the outcome. Tiles already written are left in place on failure.
func (g *Generator) BuildPyramid(ctx context.Context, imagePath, storageKey string) (*Pyramid, error) {
	defer g.removeSource(imagePath)

	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "tiles.BuildPyramid")
	defer span.End()
	span.SetAttributes(attribute.String("storage_key", storageKey))

	src, err := decodeSource(imagePath, g.maxPixels)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	maxZoom := MaxZoom(width, height)
	span.SetAttributes(
		attribute.Int("width", width),
		attribute.Int("height", height),
		attribute.Int("max_zoom", maxZoom),
	)

	var (
		keysMu sync.Mutex
		keys   []string
	)
	record := func(k string) {
		keysMu.Lock()
		keys = append(keys, k)
		keysMu.Unlock()
	}

	levels := LevelSizes(width, height, maxZoom)
	for zoom := maxZoom; zoom >= 0; zoom-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size := levels[zoom]
		level := src
		if size.X != width || size.Y != height {
			level = resize(src, size.X, size.Y)
		}
		if err := g.writeLevel(ctx, level, storageKey, zoom, record); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("zoom %d: %w", zoom, err)
		}
	}

	baseKey := storageKey + "/" + BaseName
	if err := g.put(ctx, baseKey, src); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("write %s: %w", BaseName, err)
	}
	record(baseKey)
	sort.Strings(keys)

	observability.PyramidDuration.Observe(time.Since(start).Seconds())
	g.log.Info("tile pyramid built",
		"storage_key", storageKey,
		"width", width,
		"height", height,
		"max_zoom", maxZoom,
		"objects", len(keys),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Pyramid{
		Path:    g.store.PublicURL(storageKey),
		Width:   width,
		Height:  height,
		MaxZoom: maxZoom,
		Keys:    keys,
	}, nil
}

// writeLevel extracts and stores every tile of one resized level with a
// bounded worker group.
func (g *Generator) writeLevel(ctx context.Context, level *image.NRGBA, storageKey string, zoom int, record func(string)) error {
	b := level.Bounds()
	cols := ceilDiv(b.Dx(), g.tileSize)
	rows := ceilDiv(b.Dy(), g.tileSize)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for col := 0; col < cols; col++ {
		for row := 0; row < rows; row++ {
			col, row := col, row
			eg.Go(func() error {
				rect := image.Rect(col*g.tileSize, row*g.tileSize, (col+1)*g.tileSize, (row+1)*g.tileSize).Intersect(b)
				key := TileKey(storageKey, zoom, col, row)
				if err := g.put(egCtx, key, level.SubImage(rect)); err != nil {
					return fmt.Errorf("write %s: %w", key, err)
				}
				record(key)
				observability.TilesWritten.Inc()
				return nil
			})
		}
	}
	return eg.Wait()
}

func (g *Generator) put(ctx context.Context, key string, img image.Image) error {
	var buf bytes.Buffer
	if err := g.encoder.Encode(&buf, img); err != nil {
		return err
	}
	return g.store.Put(ctx, key, &buf, "image/png")
}

func (g *Generator) removeSource(imagePath string) {
	if imagePath == "" {
		return
	}
	if err := os.Remove(imagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		g.log.Warn("failed to remove source image", "path", imagePath, "error", err)
	}
}

func TileKey(storageKey string, zoom, col, row int) string {
	return fmt.Sprintf("%s/%d-%d-%d.png", storageKey, zoom, col, row)
}

// MaxZoom counts how many half-up halvings take width x height down to 1x1.
// A 1x1 image has zoom 0 only.
func MaxZoom(width, height int) int {
	w, h := width, height
	n := 0
	for w != 1 || h != 1 {
		if w < 1 || h < 1 {
			return 0
		}
		if n > 0 {
			w, h = halfUp(w), halfUp(h)
		}
		n++
	}
	n--
	if n < 0 {
		return 0
	}
	return n
}

// LevelSizes returns the pixel size of each zoom level, indexed by zoom.
func LevelSizes(width, height, maxZoom int) []image.Point {
	out := make([]image.Point, maxZoom+1)
	w, h := width, height
	for zoom := maxZoom; zoom >= 0; zoom-- {
		if zoom != maxZoom {
			w, h = halfUp(w), halfUp(h)
		}
		out[zoom] = image.Pt(w, h)
	}
	return out
}

func halfUp(v int) int { return (v + 1) / 2 }

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func decodeSource(imagePath string, maxPixels int64) (*image.NRGBA, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessableImage, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no area", ErrUnprocessableImage)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnprocessableImage, cfg.Width, cfg.Height, maxPixels)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessableImage, err)
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out, nil
}

func resize(src *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
