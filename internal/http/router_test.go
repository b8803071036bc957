package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	"github.com/yungbote/indoormap-backend/internal/data/repos/testutil"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	httpH "github.com/yungbote/indoormap-backend/internal/http/handlers"
	"github.com/yungbote/indoormap-backend/internal/http/response"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
	"github.com/yungbote/indoormap-backend/internal/services"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

// testCSVMaxBytes caps CSV import bodies in the harness.
const testCSVMaxBytes = 16 << 10

type apiHarness struct {
	t      *testing.T
	router *gin.Engine
	rs     repos.Set
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	rs := repos.NewSet(db, log)
	engine := services.NewConsistencyEngine(log, rs, services.NewDefaultRelationRegistry(rs), services.NewMemoryLocker())
	store := tilestore.NewMemoryStore("/tiles")
	gen := tiles.NewGenerator(log, store, tiles.WithWorkers(2))
	cps := services.NewChokePointService(log, rs, engine)
	preview, err := services.NewMapPreviewService(log, rs, store, services.MapPreviewConfig{})
	if err != nil {
		t.Fatalf("NewMapPreviewService: %v", err)
	}
	maps := services.NewFloorMapService(log, rs, engine, gen, store, cps)

	r := NewRouter(RouterConfig{
		Log:               log,
		AssetHandler:      httpH.NewAssetHandler(log, services.NewAssetService(log, rs, engine)),
		FloorMapHandler:   httpH.NewFloorMapHandler(log, maps, preview, httpH.FloorMapHandlerConfig{UploadDir: t.TempDir()}),
		LocationHandler:   httpH.NewLocationHandler(log, services.NewLocationService(log, rs, engine)),
		ChokePointHandler: httpH.NewChokePointHandler(log, cps, services.NewChokePointImporter(log, rs, cps), testCSVMaxBytes),
		HealthHandler:     httpH.NewHealthHandler(db),
	})
	return &apiHarness{t: t, router: r, rs: rs}
}

func (h *apiHarness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) json(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

func (h *apiHarness) multipart(method, path string, fields map[string]string, fileField, fileName string, file []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			h.t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write(file)
	}
	_ = w.Close()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return h.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: want=%d got=%d body=%s", status, rec.Code, rec.Body.String())
	}
}

func wantCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, rec, status)
	if env := decode[response.ErrorEnvelope](t, rec); env.Error.Code != code {
		t.Fatalf("code: want=%q got=%q", code, env.Error.Code)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0x20, G: 0x40, B: 0x60, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func dbcBackground() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

func uniq(prefix string) string { return prefix + "-" + uuid.NewString()[:8] }

func TestHealthcheck(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	wantStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Fatalf("body: want=ok got=%q", rec.Body.String())
	}
}

func TestAssetRoutes(t *testing.T) {
	h := newHarness(t)
	name := uniq("Asset")

	rec := h.json(http.MethodPost, "/api/asset", map[string]string{"name": name})
	wantStatus(t, rec, http.StatusCreated)
	asset := decode[types.Asset](t, rec)

	rec = h.json(http.MethodGet, "/api/asset", nil)
	wantStatus(t, rec, http.StatusOK)
	list := decode[response.ListEnvelope[types.Asset]](t, rec)
	if list.TotalCount != int64(len(list.Items)) || list.TotalCount < 1 {
		t.Fatalf("list envelope: %+v", list)
	}

	rec = h.json(http.MethodGet, "/api/asset/all", nil)
	wantStatus(t, rec, http.StatusOK)
	if all := decode[[]types.Asset](t, rec); len(all) < 1 {
		t.Fatalf("all: want at least one asset")
	}

	rec = h.json(http.MethodPut, "/api/asset/"+asset.ID.String(), map[string]string{"name": name + "-x"})
	wantStatus(t, rec, http.StatusOK)
	if got := decode[types.Asset](t, rec); got.Name != name+"-x" {
		t.Fatalf("rename: want=%q got=%q", name+"-x", got.Name)
	}

	wantCode(t, h.json(http.MethodPost, "/api/asset", map[string]string{"name": ""}), http.StatusBadRequest, "validation_failure")
	wantCode(t, h.json(http.MethodPost, "/api/asset", map[string]string{"name": name + "-x"}), http.StatusConflict, "duplicate_key")
	wantCode(t, h.json(http.MethodGet, "/api/asset/"+uuid.NewString(), nil), http.StatusNotFound, "not_found")
	wantCode(t, h.json(http.MethodGet, "/api/asset/not-a-uuid", nil), http.StatusNotFound, "not_found")

	rec = h.json(http.MethodDelete, "/api/asset/"+asset.ID.String(), nil)
	wantStatus(t, rec, http.StatusOK)
	if res := decode[services.DeleteResult](t, rec); res.DeletedCount != 1 {
		t.Fatalf("deletedCount: want=1 got=%d", res.DeletedCount)
	}
}

func TestMapUploadAndChokePointPlacement(t *testing.T) {
	h := newHarness(t)

	rec := h.json(http.MethodPost, "/api/asset", map[string]string{"name": uniq("Asset")})
	wantStatus(t, rec, http.StatusCreated)
	asset := decode[types.Asset](t, rec)

	rec = h.multipart(http.MethodPost, "/api/map",
		map[string]string{"name": uniq("Map"), "assetId": asset.ID.String()},
		"image", "floor.png", pngBytes(t, 600, 300))
	wantStatus(t, rec, http.StatusCreated)
	m := decode[types.FloorMap](t, rec)
	if m.MaxZoom != 10 || m.Width != 600 || m.Height != 300 {
		t.Fatalf("map: want 600x300 z10 got %dx%d z%d", m.Width, m.Height, m.MaxZoom)
	}

	rec = h.json(http.MethodGet, "/api/asset/"+asset.ID.String()+"/map", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decode[response.ListEnvelope[types.FloorMap]](t, rec); got.TotalCount != 1 || got.Items[0].ID != m.ID {
		t.Fatalf("asset maps: %+v", got)
	}

	// Deleting the asset while it has a map is refused.
	wantCode(t, h.json(http.MethodDelete, "/api/asset/"+asset.ID.String(), nil), http.StatusBadRequest, "has_dependents")

	rec = h.json(http.MethodPost, "/api/chokePoint", map[string]string{"name": uniq("CP"), "macAddress": uniq("mac")})
	wantStatus(t, rec, http.StatusCreated)
	cp := decode[types.ChokePoint](t, rec)

	cpPath := "/api/chokePoint/" + cp.ID.String()
	wantCode(t, h.json(http.MethodPost, cpPath+"/map", map[string]any{"x": 10, "y": 10}), http.StatusBadRequest, "missing_parameter")
	wantCode(t, h.json(http.MethodPost, cpPath+"/map", map[string]any{"mapId": m.ID, "x": 601, "y": 10}), http.StatusUnprocessableEntity, "unprocessable_entity")

	rec = h.json(http.MethodPost, cpPath+"/map", map[string]any{"mapId": m.ID, "x": 100, "y": 50})
	wantStatus(t, rec, http.StatusOK)

	mapPath := "/api/map/" + m.ID.String()
	rec = h.json(http.MethodPut, mapPath+"/chokePoint/"+cp.ID.String()+"/position", map[string]any{"x": 150, "y": 75})
	wantStatus(t, rec, http.StatusOK)
	if got := decode[types.ChokePoint](t, rec); got.X == nil || *got.X != 150 {
		t.Fatalf("position: want x=150 got=%v", got.X)
	}

	rec = h.json(http.MethodGet, mapPath, nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decode[types.FloorMap](t, rec); len(got.ChokePoints) != 1 || got.ChokePoints[0].ID != cp.ID {
		t.Fatalf("map chokePoints: %+v", got.ChokePoints)
	}

	rec = h.do(httptest.NewRequest(http.MethodGet, mapPath+"/preview.png?maxSide=300", nil))
	wantStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("preview content type: got=%q", ct)
	}

	rec = h.json(http.MethodPost, cpPath+"/unmap", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decode[types.ChokePoint](t, rec); got.MapRef != nil || got.X != nil || got.Y != nil {
		t.Fatalf("unmap: position should be cleared, got map=%v x=%v y=%v", got.MapRef, got.X, got.Y)
	}
}

func TestMapUploadRejectsNonImage(t *testing.T) {
	h := newHarness(t)
	rec := h.multipart(http.MethodPost, "/api/map", map[string]string{"name": uniq("Map")},
		"image", "floor.png", []byte("GIF89a not really an image"))
	wantCode(t, rec, http.StatusBadRequest, "validation_failure")

	rec = h.multipart(http.MethodPost, "/api/map", map[string]string{"name": uniq("Map")}, "", "", nil)
	wantCode(t, rec, http.StatusBadRequest, "missing_parameter")
}

func TestChokePointCSVImport(t *testing.T) {
	h := newHarness(t)
	macA := uniq("a")
	rec := h.json(http.MethodPost, "/api/chokePoint", map[string]string{"name": uniq("A"), "macAddress": macA})
	wantStatus(t, rec, http.StatusCreated)

	csv := strings.Join([]string{
		"name,macAddress",
		uniq("A2") + "," + macA,
		uniq("B") + "," + uniq("b"),
		uniq("C") + "," + uniq("c"),
	}, "\n")
	rec = h.multipart(http.MethodPost, "/api/chokePoint/csv", nil, "file", "cps.csv", []byte(csv))
	wantStatus(t, rec, http.StatusOK)
	got := decode[response.ListEnvelope[types.ChokePoint]](t, rec)
	if got.TotalCount != 3 {
		t.Fatalf("results: want=3 got=%d", got.TotalCount)
	}
	if got.Items[0].MacAddress != macA {
		t.Fatalf("first result should be the update of %q, got=%q", macA, got.Items[0].MacAddress)
	}

	n, err := h.rs.ChokePoints.List(dbcBackground())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(n) < 3 {
		t.Fatalf("chokePoints: want at least 3 got=%d", len(n))
	}

	wantCode(t, h.multipart(http.MethodPost, "/api/chokePoint/csv", nil, "", "", nil), http.StatusBadRequest, "missing_parameter")
}

func TestChokePointCSVImportRejectsOversizedBody(t *testing.T) {
	h := newHarness(t)
	prefix := uniq("big")
	var b strings.Builder
	b.WriteString("name,macAddress\n")
	for i := 0; b.Len() <= testCSVMaxBytes; i++ {
		fmt.Fprintf(&b, "%s-%d,%s-mac-%d\n", prefix, i, prefix, i)
	}
	rec := h.multipart(http.MethodPost, "/api/chokePoint/csv", nil, "file", "big.csv", []byte(b.String()))
	wantCode(t, rec, http.StatusBadRequest, "validation_failure")

	cp, err := h.rs.ChokePoints.GetByMacAddress(dbcBackground(), prefix+"-mac-0")
	if err != nil {
		t.Fatalf("GetByMacAddress: %v", err)
	}
	if cp != nil {
		t.Fatalf("oversized import must not write, found %s", cp.ID)
	}
}

func TestLocationRoutes(t *testing.T) {
	h := newHarness(t)
	rec := h.json(http.MethodPost, "/api/chokePoint", map[string]string{"name": uniq("CP"), "macAddress": uniq("mac")})
	wantStatus(t, rec, http.StatusCreated)
	cp := decode[types.ChokePoint](t, rec)

	rec = h.json(http.MethodPost, "/api/location", map[string]any{
		"name":          uniq("Loc"),
		"position":      map[string]float64{"lat": 41.01, "lng": 28.97},
		"chokePointIds": []uuid.UUID{cp.ID},
	})
	wantStatus(t, rec, http.StatusCreated)
	loc := decode[types.Location](t, rec)

	rec = h.json(http.MethodGet, "/api/location/"+loc.ID.String()+"/chokePoint", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decode[response.ListEnvelope[types.ChokePoint]](t, rec); got.TotalCount != 1 || got.Items[0].ID != cp.ID {
		t.Fatalf("location chokePoints: %+v", got)
	}

	wantCode(t, h.json(http.MethodDelete, "/api/location/"+loc.ID.String(), nil), http.StatusBadRequest, "has_dependents")
	wantCode(t, h.json(http.MethodPost, "/api/location", map[string]any{
		"name":     uniq("Loc"),
		"position": map[string]float64{"lat": 91, "lng": 0},
	}), http.StatusBadRequest, "validation_failure")
}
