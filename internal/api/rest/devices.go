package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/storage"
	"github.com/openhomelab/smartserver/internal/types"
)

type RegisterDeviceRequest struct {
	Type storage.DeviceType `json:"type" binding:"required,oneof=TH_SENSOR PLANT_SENSOR"`
}

type UpdateFrequencyRequest struct {
	UpdateFrequency int `json:"update_frequency" binding:"required,min=1"`
}

type AssignHouseRequest struct {
	HouseID uuid.UUID `json:"house_id" binding:"required"`
}

// getDevice returns the device to its owner. Unowned or foreign devices
// are not distinguishable from missing ones for non-owners.
func (s *Server) getDevice(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	device, err := s.store.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	if device.OwnerID == nil || *device.OwnerID != up.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("DEVICE_401", "Not authorized for this device", nil))
		return
	}

	c.JSON(http.StatusOK, device)
}

// listDevices lists the caller's devices, optionally filtered by house
// or host via query parameter.
func (s *Server) listDevices(c *gin.Context) {
	up, _ := auth.UserPrincipalFrom(c)
	ctx := c.Request.Context()

	var (
		devices []*storage.Device
		err     error
	)

	switch {
	case c.Query("house") != "":
		houseID, parseErr := uuid.Parse(c.Query("house"))
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid house ID", nil))
			return
		}
		devices, err = s.store.ListDevicesByHouse(ctx, houseID)
	case c.Query("host") != "":
		hostID, parseErr := uuid.Parse(c.Query("host"))
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid host ID", nil))
			return
		}
		devices, err = s.store.ListDevicesByHost(ctx, hostID)
	default:
		devices, err = s.store.ListDevicesByOwner(ctx, up.ID)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to list devices", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// registerDevice creates a fresh unassociated device (admin only)
func (s *Server) registerDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	device, err := s.store.RegisterDevice(c.Request.Context(), req.Type)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to register device", nil))
		return
	}

	c.JSON(http.StatusCreated, device)
}

func (s *Server) enableDevice(c *gin.Context) {
	s.setDeviceEnabled(c, true)
}

func (s *Server) disableDevice(c *gin.Context) {
	s.setDeviceEnabled(c, false)
}

func (s *Server) setDeviceEnabled(c *gin.Context, enabled bool) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	updated, err := s.store.SetDeviceEnabled(c.Request.Context(), deviceID, enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to update device", nil))
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device updated", "enabled": enabled})
}

func (s *Server) updateDeviceFrequency(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	var req UpdateFrequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	device, err := s.store.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	if device.OwnerID == nil || *device.OwnerID != up.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("DEVICE_401", "Not authorized for this device", nil))
		return
	}

	updated, err := s.store.UpdateDeviceFrequency(c.Request.Context(), deviceID, req.UpdateFrequency)
	if err != nil || !updated {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to update frequency", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "frequency updated", "update_frequency": req.UpdateFrequency})
}

// getDeviceFrequency lets the bound host poll how often a device should
// report.
func (s *Server) getDeviceFrequency(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	device, err := s.store.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}

	hp, _ := auth.HostPrincipalFrom(c)
	if device.HostID == nil || *device.HostID != hp.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("DEVICE_401", "Device not bound to this host", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"update_frequency": device.UpdateFrequency})
}

// getDeviceAssocState lets a host poll a device's handshake state, e.g.
// to discover devices waiting for confirmation.
func (s *Server) getDeviceAssocState(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	state, err := s.store.DeviceAssocState(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": state})
}

// Association handshake handlers

func (s *Server) beginDeviceAssoc(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	if err := s.assocService.BeginDeviceAssoc(c.Request.Context(), deviceID, up); err != nil {
		s.assocError(c, "device", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": storage.StatePending})
}

func (s *Server) confirmDeviceAssoc(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	hp, _ := auth.HostPrincipalFrom(c)
	if err := s.assocService.ConfirmDeviceAssoc(c.Request.Context(), deviceID, hp); err != nil {
		s.assocError(c, "device", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": storage.StateAssociated})
}

func (s *Server) resetDeviceAssoc(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("DEVICE_401", "Not authenticated", nil))
		return
	}

	if err := s.assocService.ResetDeviceAssoc(c.Request.Context(), p, deviceID); err != nil {
		s.assocError(c, "device", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assoc_state": storage.StateUnassociated})
}

func (s *Server) assignDeviceHouse(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid device ID", err.Error()))
		return
	}

	var req AssignHouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	if err := s.assocService.DeviceHouseAssoc(c.Request.Context(), deviceID, req.HouseID); err != nil {
		s.assocError(c, "device", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "house assigned"})
}
