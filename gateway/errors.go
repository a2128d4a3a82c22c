package gateway

import (
	"net/http"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps err to its HTTP status. Errors outside the apperr
// taxonomy are logged and hidden behind a generic message.
func (g *Gateway) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
