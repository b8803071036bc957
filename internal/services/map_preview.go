package services

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

const (
	DefaultPreviewSide = 1024
	MaxPreviewSide     = 4096
)

type MapPreviewConfig struct {
	// FontPath is an optional TTF for marker labels; the built-in face is
	// used when empty.
	FontPath    string
	FontSize    float64
	MarkerColor string
}

// MapPreviewService renders a map's base image with its chokePoints marked.
type MapPreviewService interface {
	RenderPreview(dbc dbctx.Context, mapID uuid.UUID, maxSide int) (*bytes.Buffer, error)
}

type mapPreviewService struct {
	log    *logger.Logger
	repos  repos.Set
	store  tilestore.Store
	marker color.NRGBA
	face   font.Face
}

func NewMapPreviewService(log *logger.Logger, rs repos.Set, store tilestore.Store, cfg MapPreviewConfig) (MapPreviewService, error) {
	serviceLog := log.With("service", "MapPreviewService")

	marker := color.NRGBA{R: 0xE4, G: 0x57, B: 0x2E, A: 0xFF}
	if strings.TrimSpace(cfg.MarkerColor) != "" {
		r, g, b, err := parseHexRGB(cfg.MarkerColor)
		if err != nil {
			return nil, fmt.Errorf("invalid preview marker color %q: %w", cfg.MarkerColor, err)
		}
		marker = color.NRGBA{R: r, G: g, B: b, A: 0xFF}
	}

	var face font.Face
	if strings.TrimSpace(cfg.FontPath) != "" {
		size := cfg.FontSize
		if size <= 0 {
			size = 14
		}
		serviceLog.Info("Loading preview font", "font", cfg.FontPath)
		f, err := loadFontFace(cfg.FontPath, size)
		if err != nil {
			return nil, fmt.Errorf("could not load preview font: %w", err)
		}
		face = f
	}

	return &mapPreviewService{
		log:    serviceLog,
		repos:  rs,
		store:  store,
		marker: marker,
		face:   face,
	}, nil
}

func (s *mapPreviewService) RenderPreview(dbc dbctx.Context, mapID uuid.UUID, maxSide int) (*bytes.Buffer, error) {
	m, err := s.repos.FloorMaps.GetByID(dbc, mapID)
	if err != nil {
		return nil, apierr.Wrap(err, "load map")
	}
	if m == nil {
		return nil, apierr.NotFound("map %s not found", mapID)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, apierr.Unprocessable("map %s has no image", mapID)
	}

	rc, err := s.store.Open(dbc.Ctx, MapStorageKey(mapID)+"/"+tiles.BaseName)
	if errors.Is(err, tilestore.ErrNotFound) {
		return nil, apierr.NotFound("image of map %s not found", mapID)
	}
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("open base image: %w", err))
	}
	src, _, err := image.Decode(rc)
	_ = rc.Close()
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("decode base image: %w", err))
	}

	scale := previewScale(src.Bounds().Dx(), src.Bounds().Dy(), maxSide)
	w := int(math.Max(1, math.Round(float64(src.Bounds().Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(src.Bounds().Dy())*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	dc := gg.NewContextForRGBA(dst)
	if s.face != nil {
		dc.SetFontFace(s.face)
	}
	// Positions are in map pixels; the stored base image may differ from
	// the recorded map size only if it was replaced out of band.
	sx := float64(w) / float64(m.Width)
	sy := float64(h) / float64(m.Height)
	drawn := 0
	for _, cp := range m.ChokePoints {
		if cp.X == nil || cp.Y == nil {
			continue
		}
		px, py := *cp.X*sx, *cp.Y*sy

		dc.DrawCircle(px, py, 6)
		dc.SetColor(s.marker)
		dc.FillPreserve()
		dc.SetColor(color.White)
		dc.SetLineWidth(2)
		dc.Stroke()

		dc.SetColor(color.NRGBA{A: 0xDD})
		dc.DrawString(cp.Name, px+9, py-9)
		drawn++
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, apierr.Internal(fmt.Errorf("failed to encode PNG: %w", err))
	}
	s.log.Debug("map preview rendered", "map_id", mapID, "width", w, "height", h, "markers", drawn)
	return &buf, nil
}

// previewScale fits the longer side into maxSide without upscaling.
func previewScale(w, h, maxSide int) float64 {
	if maxSide <= 0 {
		maxSide = DefaultPreviewSide
	}
	if maxSide > MaxPreviewSide {
		maxSide = MaxPreviewSide
	}
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxSide || longest == 0 {
		return 1
	}
	return float64(maxSide) / float64(longest)
}

func parseHexRGB(s string) (r, g, b uint8, err error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("expected 6 hex chars")
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid hex")
	}
	return raw[0], raw[1], raw[2], nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
