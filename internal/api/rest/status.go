package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openhomelab/smartserver/internal/assoc"
	"github.com/openhomelab/smartserver/internal/types"
)

// assocError translates association service sentinels into the API's
// status contract. entity names the target kind for the error code
// ("device", "host").
func (s *Server) assocError(c *gin.Context, entity string, err error) {
	prefix := strings.ToUpper(entity)

	switch {
	case errors.Is(err, assoc.ErrNotFound):
		c.JSON(http.StatusNotFound,
			types.NewErrorResponse(prefix+"_404", "Not found", nil))
	case errors.Is(err, assoc.ErrWrongState):
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse(prefix+"_422", "Operation not valid in current association state", nil))
	case errors.Is(err, assoc.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized,
			types.NewErrorResponse(prefix+"_401", "Not authorized for this "+entity, nil))
	case errors.Is(err, assoc.ErrCascadeFailed):
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse(prefix+"_500", "Reset cascade incomplete", nil))
	default:
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse(prefix+"_500", "Internal error", nil))
	}
}
