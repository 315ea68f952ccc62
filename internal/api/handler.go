package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"price-tracker/internal/models"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScanTrigger queues a tracker run for a listing
type ScanTrigger interface {
	Trigger(listing string) bool
}

// Pinger is a dependency the readiness check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	store   store.Store
	trigger ScanTrigger
	deps    map[string]Pinger
}

// NewHandler creates a new HTTP handler. trigger may be nil, which disables
// the scan endpoint.
func NewHandler(s store.Store, trigger ScanTrigger) *Handler {
	return &Handler{
		store:   s,
		trigger: trigger,
		deps:    make(map[string]Pinger),
	}
}

// AddReadinessCheck makes /ready also require dep to answer
func (h *Handler) AddReadinessCheck(name string, dep Pinger) {
	h.deps[name] = dep
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/history", h.getPriceHistory)
		v1.GET("/alerts", h.listAlerts)
		v1.POST("/scans/:listing", h.triggerScan)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the store and every added dependency answer
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": fmt.Sprintf("store: %v", err),
		})
		return
	}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"details": fmt.Sprintf("%s: %v", name, err),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	products, err := h.store.ListProducts(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list products",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	productID, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.store.GetProduct(c.Request.Context(), productID)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	latest, err := h.store.LatestObservation(c.Request.Context(), productID)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"latest":  latest,
	})
}

func (h *Handler) getPriceHistory(c *gin.Context) {
	productID, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.store.GetProduct(c.Request.Context(), productID); err != nil {
		respondStoreError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	history, err := h.store.ListObservations(c.Request.Context(), productID, limit)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"history":    history,
	})
}

func (h *Handler) listAlerts(c *gin.Context) {
	var filter store.AlertFilter

	if raw := c.Query("kind"); raw != "" {
		kind, ok := models.ParseAlertKind(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid alert kind",
			})
			return
		}
		filter.Kind = kind
	}
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid product ID",
			})
			return
		}
		filter.ProductID = id
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))

	alerts, err := h.store.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) triggerScan(c *gin.Context) {
	listing := c.Param("listing")
	if h.trigger == nil || !h.trigger.Trigger(listing) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Unknown listing",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"listing": listing,
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return 0, false
	}
	return id, true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Product not found",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Storage error",
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
