package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthState struct {
	brokerConnected func() bool
	classifierUp    func() bool
}

type healthResponse struct {
	Status          string `json:"status"`
	BrokerConnected bool   `json:"broker_connected"`
	DatabaseOK      bool   `json:"database_ok"`
	ClassifierOK    bool   `json:"classifier_ok"`
}

func (s *Server) probe(c *gin.Context) healthResponse {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	st := healthResponse{
		BrokerConnected: s.health.brokerConnected == nil || s.health.brokerConnected(),
		DatabaseOK:      s.store.Ping(ctx) == nil,
		ClassifierOK:    s.health.classifierUp == nil || s.health.classifierUp(),
	}
	switch {
	case st.BrokerConnected && st.DatabaseOK && st.ClassifierOK:
		st.Status = "ok"
	case st.BrokerConnected || st.DatabaseOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, s.probe(c))
}

// readyz is keyed on the core dependencies only: an open classifier breaker
// degrades /healthz but the service keeps serving and the breaker recovers
// on its own.
func (s *Server) readyz(c *gin.Context) {
	st := s.probe(c)
	ready := st.BrokerConnected && st.DatabaseOK
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready})
}
