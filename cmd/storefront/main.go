package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/arthurstore/storefront/internal/checkout"
	"github.com/arthurstore/storefront/internal/config"
	"github.com/arthurstore/storefront/internal/gateway"
	"github.com/arthurstore/storefront/internal/live"
	"github.com/arthurstore/storefront/internal/metrics"
	"github.com/arthurstore/storefront/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// StorefrontService manages checkout sessions for the presentation layer
type StorefrontService struct {
	sessions map[string]*checkout.Session
	mutex    sync.RWMutex
	cfg      *config.Config

	catalogClient     *gateway.CatalogClient
	transactionClient *gateway.TransactionClient
}

var storefrontService *StorefrontService

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	storefrontService = &StorefrontService{
		sessions:          make(map[string]*checkout.Session),
		cfg:               cfg,
		catalogClient:     gateway.NewCatalogClient(cfg.CatalogURL),
		transactionClient: gateway.NewTransactionClient(cfg.TransactionURL),
	}

	router := gin.Default()

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware("storefront"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Session endpoints
	router.POST("/sessions", createSession)
	router.GET("/sessions/:sessionId", getSession)
	router.POST("/sessions/:sessionId/catalog/refresh", refreshCatalog)
	router.PUT("/sessions/:sessionId/quantity", setQuantity)
	router.POST("/sessions/:sessionId/select", selectItem)
	router.POST("/sessions/:sessionId/submit", submitTransaction)
	router.POST("/sessions/:sessionId/reset", resetSession)
	router.DELETE("/sessions/:sessionId", closeSession)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.WithFields(log.Fields{
		"catalog_url":     cfg.CatalogURL,
		"transaction_url": cfg.TransactionURL,
		"live_source":     cfg.LiveSource,
	}).Info("Storefront starting on port " + cfg.Port)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

// newLiveSource builds the configured push-channel source for one session.
func newLiveSource(cfg *config.Config) live.Source {
	switch cfg.LiveSource {
	case config.LiveSourceRedis:
		return live.NewRedisSource(cfg.RedisAddr, cfg.RedisChannel)
	case config.LiveSourceKafka:
		return live.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	}
	return nil
}

// createSession opens a new checkout session, starts its live status
// subscription and performs the initial catalog fetch. A failed fetch is
// recorded on the session, not fatal to creation.
func createSession(c *gin.Context) {
	session := checkout.NewSession(
		storefrontService.catalogClient,
		storefrontService.transactionClient,
		newLiveSource(storefrontService.cfg),
	)

	if err := session.Start(context.Background()); err != nil {
		log.Error("Failed to start live subscription: ", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live status channel unavailable"})
		return
	}

	if err := session.LoadCatalog(c.Request.Context()); err != nil {
		log.WithField("session_id", session.ID).Warn("Initial catalog fetch failed: ", err)
	}

	storefrontService.mutex.Lock()
	storefrontService.sessions[session.ID] = session
	storefrontService.mutex.Unlock()
	metrics.ActiveSessions.Inc()

	log.WithField("session_id", session.ID).Info("Session created")
	c.JSON(http.StatusCreated, session.Snapshot())
}

// getSession returns the session snapshot
func getSession(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// refreshCatalog re-fetches the item list for a session
func refreshCatalog(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}

	if err := session.LoadCatalog(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

type quantityRequest struct {
	ProductID int `json:"productId" binding:"required"`
	Quantity  int `json:"quantity"`
}

// setQuantity records a requested quantity for an item
func setQuantity(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := session.SetQuantity(req.ProductID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

type selectRequest struct {
	ProductID int `json:"productId" binding:"required"`
}

// selectItem makes an item the active selection
func selectItem(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := session.SelectItem(req.ProductID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

type submitRequest struct {
	Payment  models.PaymentDetails  `json:"payment" binding:"required"`
	Delivery models.DeliveryDetails `json:"delivery" binding:"required"`
}

// submitTransaction drives one purchase attempt through the state machine
func submitTransaction(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	record, err := session.Submit(c.Request.Context(), req.Payment, req.Delivery)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// resetSession is the explicit return-to-catalog action
func resetSession(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}

	if err := session.Reset(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// closeSession tears a session down and removes it
func closeSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	storefrontService.mutex.Lock()
	session, exists := storefrontService.sessions[sessionID]
	if exists {
		delete(storefrontService.sessions, sessionID)
	}
	storefrontService.mutex.Unlock()

	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found", "session_id": sessionID})
		return
	}

	if err := session.Close(); err != nil {
		log.WithField("session_id", sessionID).Error("Error closing session: ", err)
	}
	metrics.ActiveSessions.Dec()

	log.WithField("session_id", sessionID).Info("Session closed")
	c.Status(http.StatusNoContent)
}

func lookupSession(c *gin.Context) (*checkout.Session, bool) {
	sessionID := c.Param("sessionId")

	storefrontService.mutex.RLock()
	session, exists := storefrontService.sessions[sessionID]
	storefrontService.mutex.RUnlock()

	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found", "session_id": sessionID})
		return nil, false
	}
	return session, true
}

// respondError maps session error kinds to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
