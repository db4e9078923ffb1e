package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/storage"
	"github.com/openhomelab/smartserver/internal/types"
)

type RegisterHostResponse struct {
	Host   *storage.Host `json:"host"`
	APIKey string        `json:"api_key"` // Only returned once!
}

func (s *Server) getHost(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid host ID", err.Error()))
		return
	}

	host, err := s.store.GetHost(c.Request.Context(), hostID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("HOST_404", "Host not found", nil))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	if host.OwnerID == nil || *host.OwnerID != up.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("HOST_401", "Not authorized for this host", nil))
		return
	}

	c.JSON(http.StatusOK, host)
}

func (s *Server) listHosts(c *gin.Context) {
	up, _ := auth.UserPrincipalFrom(c)

	var (
		hosts []*storage.Host
		err   error
	)

	if houseParam := c.Query("house"); houseParam != "" {
		houseID, parseErr := uuid.Parse(houseParam)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid house ID", nil))
			return
		}
		hosts, err = s.store.ListHostsByHouse(c.Request.Context(), houseID)
	} else {
		hosts, err = s.store.ListHostsByOwner(c.Request.Context(), up.ID)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOST_500", "Failed to list hosts", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"hosts": hosts})
}

// registerHost provisions a new gateway (admin only). The generated API
// key appears in this response and is never retrievable again.
func (s *Server) registerHost(c *gin.Context) {
	apiKey, apiKeyHash, err := s.authService.NewHostCredential()
	if err != nil {
		s.logger.Error("Failed to generate host credential", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOST_500", "Failed to register host", nil))
		return
	}

	host, err := s.store.RegisterHost(c.Request.Context(), apiKeyHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOST_500", "Failed to register host", nil))
		return
	}

	c.JSON(http.StatusCreated, RegisterHostResponse{
		Host:   host,
		APIKey: apiKey,
	})
}

func (s *Server) enableHost(c *gin.Context) {
	s.setHostEnabled(c, true)
}

func (s *Server) disableHost(c *gin.Context) {
	s.setHostEnabled(c, false)
}

func (s *Server) setHostEnabled(c *gin.Context, enabled bool) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid host ID", err.Error()))
		return
	}

	updated, err := s.store.SetHostEnabled(c.Request.Context(), hostID, enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOST_500", "Failed to update host", nil))
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("HOST_404", "Host not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "host updated", "enabled": enabled})
}

// Association handshake handlers

func (s *Server) beginHostAssoc(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid host ID", err.Error()))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	if err := s.assocService.BeginHostAssoc(c.Request.Context(), hostID, up); err != nil {
		s.assocError(c, "host", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": storage.StatePending})
}

// confirmHostAssoc is self-confirmation: the host named by the API key
// confirms its own pending association.
func (s *Server) confirmHostAssoc(c *gin.Context) {
	hp, _ := auth.HostPrincipalFrom(c)
	if err := s.assocService.ConfirmHostAssoc(c.Request.Context(), hp); err != nil {
		s.assocError(c, "host", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": storage.StateAssociated})
}

// getOwnHostAssocState lets a host poll its own handshake state, e.g.
// while waiting for a user to start the association.
func (s *Server) getOwnHostAssocState(c *gin.Context) {
	hp, _ := auth.HostPrincipalFrom(c)

	state, err := s.store.HostAssocState(c.Request.Context(), hp.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("HOST_404", "Host not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": state})
}

func (s *Server) resetHostAssoc(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid host ID", err.Error()))
		return
	}

	if err := s.assocService.ResetHostAssoc(c.Request.Context(), hostID); err != nil {
		s.assocError(c, "host", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": storage.StateUnassociated})
}

func (s *Server) assignHostHouse(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid host ID", err.Error()))
		return
	}

	var req AssignHouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOST_400", "Invalid request body", err.Error()))
		return
	}

	if err := s.assocService.HostHouseAssoc(c.Request.Context(), hostID, req.HouseID); err != nil {
		s.assocError(c, "host", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "house assigned"})
}
