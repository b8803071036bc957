package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { RespondAPIError(c, logger.Nop(), err) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	var env ErrorEnvelope
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &env); decodeErr != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), decodeErr)
	}
	return rec, env
}

func TestRespondAPIErrorOperational(t *testing.T) {
	rec, env := serveError(t, apierr.HasDependents("asset %s still has maps", "a1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
	}
	if env.Error.Code != apierr.CodeHasDependents {
		t.Fatalf("code: want=%q got=%q", apierr.CodeHasDependents, env.Error.Code)
	}
	if env.Error.Message != "asset a1 still has maps" {
		t.Fatalf("message: got=%q", env.Error.Message)
	}
}

func TestRespondAPIErrorHidesInternals(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp 10.0.0.3:5432: connection refused"),
		apierr.Internal(errors.New("push summary: deadlock detected")),
	} {
		rec, env := serveError(t, err)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status: want=%d got=%d", http.StatusInternalServerError, rec.Code)
		}
		if env.Error.Code != apierr.CodeInternal || env.Error.Message != internalMessage {
			t.Fatalf("leaked error: %+v", env.Error)
		}
	}
}

func TestRespondList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { RespondList[string](c, nil) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := rec.Body.String(); got != `{"items":[],"totalCount":0}` {
		t.Fatalf("body: got=%s", got)
	}
}
