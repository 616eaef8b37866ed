package api

import (
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	engine    *service.Engine
	jwtSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *service.Engine, jwtSecret string) *Handler {
	return &Handler{
		engine:    engine,
		jwtSecret: jwtSecret,
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

	v1 := router.Group("/api/v1", h.authMiddleware())
	{
		v1.POST("/items", h.createItem)
		v1.GET("/items", h.listItems)
		v1.GET("/items/:id/stock", h.getItemStock)
		v1.DELETE("/items/:id", h.deleteItem)

		v1.POST("/clients", h.createClient)
		v1.GET("/clients/:id", h.getClient)

		v1.POST("/sales", h.createSale)
		v1.GET("/sales", h.listSales)
		v1.GET("/sales/:id", h.getSale)
		v1.POST("/sales/:id/cancel", h.cancelSale)

		v1.POST("/purchase-orders", h.submitPurchaseOrder)
		v1.GET("/purchase-orders", h.listPurchaseOrders)
		v1.GET("/purchase-orders/:id", h.getPurchaseOrder)
		v1.POST("/purchase-orders/:id/arrive", h.markOrderArrived)
		v1.POST("/purchase-orders/:id/cancel", h.cancelPurchaseOrder)
		v1.DELETE("/purchase-orders/:id", h.deletePurchaseOrder)

		v1.GET("/reconciliation-issues", h.listReconciliationIssues)
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

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid ID",
			"details": c.Param("id"),
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) createItem(c *gin.Context) {
	var req service.CreateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.engine.CreateItem(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) listItems(c *gin.Context) {
	items, err := h.engine.ListItems(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) getItemStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	stock, err := h.engine.GetItemStock(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.engine.DeleteItem(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createClient(c *gin.Context) {
	var req service.CreateClientRequest
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.engine.CreateClient(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) getClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	client, err := h.engine.GetClient(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// createSale handles sale creation. The Idempotency-Key header is used when
// the body carries no key.
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	sale, err := h.engine.CreateSale(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *Handler) listSales(c *gin.Context) {
	sales, err := h.engine.ListSales(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) getSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sale, err := h.engine.GetSale(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// cancelSale answers 202 while the stock reversal is still pending
func (h *Handler) cancelSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sale, err := h.engine.CancelSale(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if sale.Compensation == models.CompensationPending {
		status = http.StatusAccepted
	}
	c.JSON(status, sale)
}

func (h *Handler) submitPurchaseOrder(c *gin.Context) {
	var req service.SubmitPurchaseOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.engine.SubmitPurchaseOrder(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listPurchaseOrders(c *gin.Context) {
	orders, err := h.engine.ListPurchaseOrders(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_orders": orders})
}

func (h *Handler) getPurchaseOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.engine.GetPurchaseOrder(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) markOrderArrived(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.engine.MarkOrderArrived(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelPurchaseOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.engine.CancelPurchaseOrder(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deletePurchaseOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.engine.DeletePurchaseOrder(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listReconciliationIssues(c *gin.Context) {
	issues, err := h.engine.ListReconciliationIssues(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
