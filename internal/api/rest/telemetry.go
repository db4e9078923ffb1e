package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/types"
)

type IngestTelemetryRequest struct {
	DeviceID          uuid.UUID `json:"device_id" binding:"required"`
	BatteryPercentage int       `json:"battery_percentage" binding:"min=0,max=100"`
	Temperature       float32   `json:"temperature"`
	Humidity          float32   `json:"humidity"`
	HeatIndex         float32   `json:"heat_index"`
}

// ingestTelemetry accepts a sensor sample from the device's bound host.
// The reading timestamp is assigned server-side at insert.
func (s *Server) ingestTelemetry(c *gin.Context) {
	var req IngestTelemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TELEMETRY_400", "Invalid request body", err.Error()))
		return
	}

	device, err := s.store.GetDevice(c.Request.Context(), req.DeviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("TELEMETRY_404", "Device not found", nil))
		return
	}

	hp, _ := auth.HostPrincipalFrom(c)
	if device.HostID == nil || *device.HostID != hp.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("TELEMETRY_401", "Device not bound to this host", nil))
		return
	}

	reading, err := s.store.InsertTHReading(c.Request.Context(),
		req.DeviceID, req.BatteryPercentage, req.Temperature, req.Humidity, req.HeatIndex)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("TELEMETRY_500", "Failed to store reading", nil))
		return
	}

	s.wsHub.TelemetryReceived(reading)

	c.JSON(http.StatusCreated, reading)
}

func (s *Server) getTelemetry(c *gin.Context) {
	readingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TELEMETRY_400", "Invalid reading ID", err.Error()))
		return
	}

	reading, err := s.store.GetTHReading(c.Request.Context(), readingID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("TELEMETRY_404", "Reading not found", nil))
		return
	}

	c.JSON(http.StatusOK, reading)
}

// listDeviceTelemetry returns a device's readings to its owner.
func (s *Server) listDeviceTelemetry(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("TELEMETRY_400", "Invalid device ID", err.Error()))
		return
	}

	device, err := s.store.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("TELEMETRY_404", "Device not found", nil))
		return
	}

	up, _ := auth.UserPrincipalFrom(c)
	if device.OwnerID == nil || *device.OwnerID != up.ID {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("TELEMETRY_401", "Not authorized for this device", nil))
		return
	}

	readings, err := s.store.ListTHReadingsByDevice(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("TELEMETRY_500", "Failed to list readings", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"readings": readings})
}
