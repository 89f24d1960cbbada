package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
)

// errorBody is the failure shape of every endpoint.
type errorBody struct {
	Error   string      `json:"error"`
	Code    apperr.Code `json:"code"`
	Details any         `json:"details,omitempty"`
}

func (h *Handler) writeError(c *gin.Context, err error) {
	e := apperr.From(err)
	status := e.Status
	if status == 0 {
		status = e.Code.Status()
	}

	log := infralogger.FromContextOr(c.Request.Context(), h.log)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			infralogger.String("path", c.FullPath()),
			infralogger.String("code", string(e.Code)),
			infralogger.Error(err),
		)
	} else {
		log.Debug("Request rejected",
			infralogger.String("path", c.FullPath()),
			infralogger.String("code", string(e.Code)),
			infralogger.Error(err),
		)
	}

	c.JSON(status, errorBody{Error: e.Message, Code: e.Code, Details: e.Details})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.writeError(c, apperr.New(apperr.CodeInvalidRequest, "Invalid request body").WithDetails(err.Error()))
}
