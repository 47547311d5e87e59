package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrosense/cropwatch/internal/model"
	"github.com/agrosense/cropwatch/internal/persistence"
	"github.com/agrosense/cropwatch/internal/weather"
)

type sensorDataRequest struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	RainMM      float64   `json:"rain_mm"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Server) receiveSensorData(c *gin.Context) {
	var req sensorDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	reading := model.TelemetryReading{
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
		RainMM:      req.RainMM,
		Timestamp:   req.Timestamp,
	}
	if err := s.store.InsertTelemetry(c.Request.Context(), &reading); err != nil {
		if persistence.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reading"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sensor data stored"})
}

// flightClearance answers the weather side of the source's ambiguous
// /drone-status/ route. An empty telemetry store is a grounded answer, not
// an error.
func (s *Server) flightClearance(c *gin.Context) {
	reading, err := s.store.LatestTelemetry(c.Request.Context())
	if errors.Is(err, persistence.ErrNotFound) {
		c.JSON(http.StatusOK, weather.Decision{CanTakeOff: false, Reason: "no telemetry available"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read telemetry"})
		return
	}
	c.JSON(http.StatusOK, weather.Evaluate(reading))
}

type droneStatusResponse struct {
	DroneStatus     string     `json:"droneStatus"`
	LastMissionDate *time.Time `json:"lastMissionDate,omitempty"`
}

func (s *Server) droneStatus(c *gin.Context) {
	mission, err := s.store.LatestMission(c.Request.Context())
	if errors.Is(err, persistence.ErrNotFound) {
		c.JSON(http.StatusOK, droneStatusResponse{DroneStatus: "unknown"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read missions"})
		return
	}
	c.JSON(http.StatusOK, droneStatusResponse{
		DroneStatus:     string(mission.Status),
		LastMissionDate: &mission.Date,
	})
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts, err := s.store.ListAlerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}
