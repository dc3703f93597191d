// Package api exposes the read-only surfaces of the three core
// services plus a websocket feed of state transitions.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
	"github.com/sambitsargam/AeroSwap/htlc"
	"github.com/sambitsargam/AeroSwap/mevshield"
	"github.com/sambitsargam/AeroSwap/splitter"
)

type Server struct {
	coordinator *htlc.Coordinator
	shield      *mevshield.Shield
	splitter    *splitter.Splitter
	feed        *Feed
	engine      *gin.Engine
	port        string
}

func NewServer(coordinator *htlc.Coordinator, shield *mevshield.Shield, split *splitter.Splitter, bus *events.Bus, port string, release bool) *Server {
	server := &Server{
		coordinator: coordinator,
		shield:      shield,
		splitter:    split,
		feed:        NewFeed(bus),
		port:        port,
	}
	if release {
		gin.SetMode(gin.ReleaseMode)
	}
	setupRouter(server)
	return server
}

func setupRouter(server *Server) {
	r := gin.Default()
	r.Use(corsMiddleware())

	v1 := r.Group("/api/v1")
	v1.GET("/swaps/:id", server.getSwap)
	v1.GET("/shield/orders/:id", server.getShieldOrder)
	v1.GET("/shield/stats", server.getShieldStats)
	v1.GET("/orders/:id", server.getOrder)
	v1.GET("/orders/analytics", server.getAnalytics)

	r.GET("/ws", gin.WrapF(server.feed.Handler()))

	server.engine = r
}

func (s *Server) Run() error {
	s.feed.Start()
	return s.engine.Run(":" + s.port)
}

func (s *Server) getSwap(c *gin.Context) {
	result, err := s.coordinator.Monitor(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getShieldOrder(c *gin.Context) {
	view, err := s.shield.OrderStatus(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getShieldStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.shield.Stats())
}

func (s *Server) getOrder(c *gin.Context) {
	status, err := s.splitter.Status(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, s.splitter.AnalyticsReport())
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSwapNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCommitmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrTimelockNotExpired):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
