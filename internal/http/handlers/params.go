package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
)

func requestDBC(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// pathID parses a uuid path parameter. A malformed id cannot match any row,
// so it is reported as NotFound.
func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierr.NotFound("%s %q not found", name, raw)
	}
	return id, nil
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apierr.Validation(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

// formUUID reads an optional uuid form field.
func formUUID(c *gin.Context, field string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierr.Validation(fmt.Errorf("%s must be a uuid", field))
	}
	return &id, nil
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
