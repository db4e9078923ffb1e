package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/storage"
	"github.com/openhomelab/smartserver/internal/types"
)

type HouseRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) createHouse(c *gin.Context) {
	var req HouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOUSE_400", "Invalid request body", err.Error()))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	house, err := s.store.CreateHouse(c.Request.Context(), req.Name, up.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOUSE_500", "Failed to create house", nil))
		return
	}

	c.JSON(http.StatusCreated, house)
}

func (s *Server) listHouses(c *gin.Context) {
	up, _ := auth.UserPrincipalFrom(c)

	houses, err := s.store.ListHousesByOwner(c.Request.Context(), up.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOUSE_500", "Failed to list houses", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"houses": houses})
}

// ownedHouse loads a house and checks the caller owns it. Writes the
// error response itself and returns nil when the check fails.
func (s *Server) ownedHouse(c *gin.Context) *storage.House {
	houseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOUSE_400", "Invalid house ID", err.Error()))
		return nil
	}

	house, err := s.store.GetHouse(c.Request.Context(), houseID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("HOUSE_404", "House not found", nil))
		return nil
	}

	up, _ := auth.UserPrincipalFrom(c)
	if house.OwnerID != up.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("HOUSE_401", "Not authorized for this house", nil))
		return nil
	}

	return house
}

func (s *Server) getHouse(c *gin.Context) {
	house := s.ownedHouse(c)
	if house == nil {
		return
	}

	c.JSON(http.StatusOK, house)
}

func (s *Server) renameHouse(c *gin.Context) {
	house := s.ownedHouse(c)
	if house == nil {
		return
	}

	var req HouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HOUSE_400", "Invalid request body", err.Error()))
		return
	}

	updated, err := s.store.RenameHouse(c.Request.Context(), house.ID, req.Name)
	if err != nil || !updated {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOUSE_500", "Failed to rename house", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "house renamed"})
}

// deleteHouse removes a house only while no device or host references
// it.
func (s *Server) deleteHouse(c *gin.Context) {
	house := s.ownedHouse(c)
	if house == nil {
		return
	}
	ctx := c.Request.Context()

	devices, err := s.store.ListDevicesByHouse(ctx, house.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOUSE_500", "Failed to delete house", nil))
		return
	}
	hosts, err := s.store.ListHostsByHouse(ctx, house.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOUSE_500", "Failed to delete house", nil))
		return
	}

	if len(devices) > 0 || len(hosts) > 0 {
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("HOUSE_422", "House is still referenced by devices or hosts", gin.H{
				"devices": len(devices),
				"hosts":   len(hosts),
			}))
		return
	}

	deleted, err := s.store.DeleteHouse(ctx, house.ID)
	if err != nil || !deleted {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("HOUSE_500", "Failed to delete house", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "house deleted"})
}
