package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	manager     *service.ReservationManager
	ledger      *service.Ledger
	sweeper     *service.Sweeper
	coordinator *service.SettlementCoordinator
}

// NewHandler creates a new HTTP handler
func NewHandler(
	manager *service.ReservationManager,
	ledger *service.Ledger,
	sweeper *service.Sweeper,
	coordinator *service.SettlementCoordinator,
) *Handler {
	return &Handler{
		manager:     manager,
		ledger:      ledger,
		sweeper:     sweeper,
		coordinator: coordinator,
	}
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
		v1.POST("/reservations", h.createReservations)
		v1.GET("/reservations/:id", h.getReservation)
		v1.POST("/reservations/:id/release", h.releaseReservation)
		v1.POST("/reservations/:id/extend", h.extendReservation)

		v1.POST("/webhooks/payment", h.paymentWebhook)

		v1.GET("/stock/:sku", h.getStock)

		admin := v1.Group("/admin")
		{
			admin.PUT("/stock/:sku", h.setStock)
			admin.POST("/sweep", h.sweep)
			admin.GET("/reconciliations", h.listReconciliations)
			admin.POST("/reconciliations/:id/resolve", h.resolveReconciliation)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createReservations handles a checkout's reserve call
func (h *Handler) createReservations(c *gin.Context) {
	var req service.ReserveRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.manager.Reserve(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "out of stock"})
		case errors.Is(err, service.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
		case errors.Is(err, store.ErrSKUNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown sku"})
		case errors.Is(err, service.ErrInvalidReservationItem):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to reserve stock",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getReservation handles get reservation by ID
func (h *Handler) getReservation(c *gin.Context) {
	reservation, err := h.manager.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// releaseReservation handles an explicit release from the checkout flow
func (h *Handler) releaseReservation(c *gin.Context) {
	err := h.manager.Release(c.Request.Context(), c.Param("id"), "caller_released")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to release reservation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": true})
}

type extendRequest struct {
	TTLSeconds int `json:"ttl_seconds" binding:"required,min=1"`
}

// extendReservation pushes out a reservation's expiry
func (h *Handler) extendReservation(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	expiresAt, err := h.manager.Extend(c.Request.Context(), c.Param("id"),
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, service.ErrReservationNotActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "reservation is not active"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to extend reservation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"expires_at": expiresAt})
}

type paymentWebhookRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	EventType string `json:"event_type" binding:"required"`
	EventID   string `json:"event_id"`
	Provider  string `json:"provider"`
	Reason    string `json:"reason"`
}

// paymentWebhook accepts payment notifications relayed over HTTP. The
// Kafka consumer and this endpoint feed the same coordinator entry point.
func (h *Handler) paymentWebhook(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.EventID == "" {
		req.EventID = uuid.New().String()
	}

	event := &models.PaymentEvent{
		BaseEvent: models.BaseEvent{
			EventID:   req.EventID,
			EventType: req.EventType,
			Timestamp: time.Now(),
		},
		OrderID:  req.OrderID,
		Provider: req.Provider,
		Reason:   req.Reason,
	}

	if err := h.coordinator.HandlePaymentEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process payment event",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": true})
}

// getStock returns the ledger row for a SKU
func (h *Handler) getStock(c *gin.Context) {
	unit, err := h.ledger.GetStockUnit(c.Request.Context(), c.Param("sku"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "SKU not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sku":                unit.SKU,
		"total_quantity":     unit.TotalQuantity,
		"reserved_quantity":  unit.ReservedQuantity,
		"available_quantity": unit.Available(),
	})
}

type setStockRequest struct {
	TotalQuantity *int `json:"total_quantity" binding:"required,min=0"`
}

// setStock handles administrative restock
func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.ledger.SetTotal(c.Request.Context(), c.Param("sku"), *req.TotalQuantity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to set stock",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}

type sweepRequest struct {
	HoursOld int `json:"hours_old"`
}

// sweep handles the authenticated manual sweep trigger
func (h *Handler) sweep(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.HoursOld < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours_old must not be negative"})
		return
	}

	report, err := h.sweeper.Sweep(c.Request.Context(), time.Duration(req.HoursOld)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sweep failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"items_released":    report.ReservationsReleased,
		"quantity_released": report.QuantityReleased,
		"hours_old":         req.HoursOld,
	})
}

// listReconciliations returns the open manual-reconciliation queue
func (h *Handler) listReconciliations(c *gin.Context) {
	entries, err := h.coordinator.ListReconciliations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list reconciliations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type resolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

// resolveReconciliation records an operator's decision for an entry
func (h *Handler) resolveReconciliation(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.coordinator.ResolveReconciliation(c.Request.Context(), c.Param("id"), req.Resolution); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to resolve reconciliation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": true})
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
