package rest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/openhomelab/smartserver/internal/assoc"
)

func TestAssocError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", assoc.ErrNotFound, http.StatusNotFound},
		{"wrong state", assoc.ErrWrongState, http.StatusUnprocessableEntity},
		{"unauthorized", assoc.ErrUnauthorized, http.StatusUnauthorized},
		{"cascade failed", assoc.ErrCascadeFailed, http.StatusInternalServerError},
		{"unexpected", errors.New("connection lost"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			s.assocError(c, "device", tc.err)
			require.Equal(t, tc.want, w.Code)
		})
	}
}
