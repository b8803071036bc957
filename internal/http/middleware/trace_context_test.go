package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/platform/ctxutil"
)

func TestAttachTraceContextKeepsCallerRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())

	var seen string
	r.GET("/api/asset", func(c *gin.Context) {
		seen = ctxutil.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/asset", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "req-42" {
		t.Fatalf("request id in context: want=%q got=%q", "req-42", seen)
	}
	if got := rec.Header().Get(headerRequestID); got != "req-42" {
		t.Fatalf("request id header: want=%q got=%q", "req-42", got)
	}
	if rec.Header().Get(headerTraceID) == "" {
		t.Fatalf("trace id header should be generated")
	}
}

func TestAttachTraceContextReplacesUnsafeRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())

	var td *ctxutil.TraceData
	r.GET("/api/map/:id", func(c *gin.Context) {
		td = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/map/m-1", nil)
	req.Header.Set(headerRequestID, "bad id\nwith newline")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if td == nil {
		t.Fatalf("trace data missing from context")
	}
	if td.RequestID == "bad id\nwith newline" || len(td.RequestID) != 36 {
		t.Fatalf("request id: want generated uuid got=%q", td.RequestID)
	}
	if td.EntityID != "m-1" {
		t.Fatalf("entity id: want=%q got=%q", "m-1", td.EntityID)
	}
	if got := len(td.Fields()); got != 6 {
		t.Fatalf("fields: want=6 got=%d", got)
	}
}
