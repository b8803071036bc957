package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/ctxutil"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

const internalMessage = "internal error"

// RespondAPIError writes err using its apierr status and code. Operational
// errors carry their own message; anything else is logged and reported as a
// generic internal error.
func RespondAPIError(c *gin.Context, log *logger.Logger, err error) {
	e, ok := apierr.As(err)
	if ok && e.Operational() {
		RespondError(c, e.Status, e.Code, e)
		return
	}
	if log != nil {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", ctxutil.RequestID(c.Request.Context()),
			"error", err,
		)
	}
	status := http.StatusInternalServerError
	if ok && e.Status >= http.StatusInternalServerError {
		status = e.Status
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{Message: internalMessage, Code: apierr.CodeInternal},
	})
}
