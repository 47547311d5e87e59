// Package server is the HTTP surface: sensor ingest, flight clearance,
// drone status, alert history, health and metrics.
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrosense/cropwatch/internal/persistence"
)

type Server struct {
	store  *persistence.Store
	health *healthState
}

func New(store *persistence.Store, opts ...Option) *Server {
	s := &Server{store: store, health: &healthState{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*Server)

// WithBrokerCheck wires the MQTT connection into /healthz and /readyz.
func WithBrokerCheck(connected func() bool) Option {
	return func(s *Server) { s.health.brokerConnected = connected }
}

// WithClassifierCheck wires the scoring client's circuit state into /healthz.
func WithClassifierCheck(up func() bool) Option {
	return func(s *Server) { s.health.classifierUp = up }
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.POST("/sensor-data/", s.receiveSensorData)
	r.GET("/flight-clearance/", s.flightClearance)
	r.GET("/drone-status/", s.droneStatus)
	r.GET("/alerts/", s.listAlerts)

	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
