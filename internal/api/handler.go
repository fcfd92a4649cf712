package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"cart-service/internal/availability"
	"cart-service/internal/cart"
	"cart-service/internal/checkout"
	"cart-service/internal/confirmation"
	"cart-service/internal/models"
	"cart-service/internal/reservation"
	"cart-service/internal/store"
	"cart-service/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	store     *store.Store
	manager   *cart.Manager
	oracle    *availability.Oracle
	machine   *confirmation.Machine
	publisher checkout.Publisher

	mu       sync.Mutex
	sessions map[string]*session
}

// session bundles the per-cart engines so all operations of one customer
// session go through the same serialized engine.
type session struct {
	cart   *cart.Cart
	engine *reservation.Engine
	orch   *checkout.Orchestrator
}

// NewHandler creates a new HTTP handler
func NewHandler(
	st *store.Store,
	manager *cart.Manager,
	oracle *availability.Oracle,
	machine *confirmation.Machine,
	publisher checkout.Publisher,
) *Handler {
	return &Handler{
		store:     st,
		manager:   manager,
		oracle:    oracle,
		machine:   machine,
		publisher: publisher,
		sessions:  make(map[string]*session),
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
		v1.GET("/carts/:session", h.getCart)
		v1.DELETE("/carts/:session", h.clearCart)
		v1.POST("/carts/:session/items", h.addItem)
		v1.PUT("/carts/:session/items/:productID", h.setQuantity)
		v1.POST("/carts/:session/items/:productID/increment", h.increment)
		v1.POST("/carts/:session/items/:productID/decrement", h.decrement)
		v1.DELETE("/carts/:session/items/:productID", h.removeItem)
		v1.POST("/carts/:session/checkout", h.createOrder)

		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/reject", h.rejectOrder)
	}
}

func (h *Handler) session(c *gin.Context) *session {
	id := c.Param("session")

	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[id]; ok {
		return s
	}

	crt := h.manager.Cart(c.Request.Context(), id)
	s := &session{
		cart:   crt,
		engine: reservation.NewEngine(crt, h.oracle),
		orch:   checkout.NewOrchestrator(crt, h.oracle, h.store, h.publisher),
	}
	h.sessions[id] = s
	return s
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

type cartLineView struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// getCart returns the session's cart contents and totals
func (h *Handler) getCart(c *gin.Context) {
	s := h.session(c)

	items := s.cart.Items()
	lines := make([]cartLineView, 0, len(items))
	for _, it := range items {
		lines = append(lines, cartLineView{
			ProductID: it.ProductID,
			Name:      it.Snapshot.Name,
			Unit:      string(it.Unit()),
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   lines,
		"point":   s.cart.SelectedPoint(),
		"totals":  s.cart.Totals(),
		"version": s.cart.Version(),
	})
}

// clearCart empties the session's cart
func (h *Handler) clearCart(c *gin.Context) {
	s := h.session(c)
	s.cart.Clear(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"items": []cartLineView{}})
}

type addItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	PointID   int64           `json:"point_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty"`
}

// addItem adds a product to the cart through the reservation engine
func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	product, err := h.store.ProductByID(ctx, req.ProductID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	point, err := h.store.PointByID(ctx, req.PointID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Point not found"})
		return
	}
	seller, err := h.store.SellerByID(ctx, point.SellerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seller not found"})
		return
	}

	s := h.session(c)
	res := s.engine.AddToCart(ctx, reservation.AddRequest{
		ProductID:  product.ID,
		SellerSlug: seller.Slug,
		PointID:    point.ID,
		PointName:  point.Name,
		Qty:        req.Qty,
		UnitPrice:  product.EffectivePrice(),
		Snapshot: models.ProductSnapshot{
			Name:          product.Name,
			Unit:          product.Unit,
			Price:         product.Price,
			DiscountKind:  product.DiscountKind,
			DiscountValue: product.DiscountValue,
		},
	})
	c.JSON(http.StatusOK, res)
}

type setQtyRequest struct {
	Qty decimal.Decimal `json:"qty"`
}

// setQuantity applies a directly entered quantity
func (h *Handler) setQuantity(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}

	var req setQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	s := h.session(c)
	c.JSON(http.StatusOK, s.engine.SetExactQty(c.Request.Context(), productID, req.Qty))
}

// increment moves a line up by one unit step
func (h *Handler) increment(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}
	s := h.session(c)
	c.JSON(http.StatusOK, s.engine.Increment(c.Request.Context(), productID))
}

// decrement moves a line down by one unit step
func (h *Handler) decrement(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}
	s := h.session(c)
	c.JSON(http.StatusOK, s.engine.Decrement(c.Request.Context(), productID))
}

// removeItem deletes a line from the cart
func (h *Handler) removeItem(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}
	s := h.session(c)
	s.cart.Remove(c.Request.Context(), productID)
	c.JSON(http.StatusOK, gin.H{"removed": productID})
}

// createOrder runs checkout for the session's cart
func (h *Handler) createOrder(c *gin.Context) {
	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	s := h.session(c)
	res := s.orch.CreateOrder(c.Request.Context(), req)
	if !res.Success {
		// customers see which lines to adjust, never the stock numbers
		conflicts := make([]gin.H, 0, len(res.Errors))
		for _, e := range res.Errors {
			conflicts = append(conflicts, gin.H{
				"product_id":   e.ProductID,
				"product_name": e.ProductName,
				"requested":    e.Requested,
				"unit":         e.Unit,
			})
		}
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"message":   res.Message,
			"conflicts": conflicts,
		})
		return
	}
	c.JSON(http.StatusCreated, res)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	order, err := h.store.OrderByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	items, err := h.store.OrderItemsByOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// confirmOrder runs the seller-side confirmation transition
func (h *Handler) confirmOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	res := h.machine.Confirm(c.Request.Context(), orderID)
	if !res.Success {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// rejectOrder runs the seller-side rejection transition
func (h *Handler) rejectOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	res := h.machine.Reject(c.Request.Context(), orderID, req.Reason)
	if !res.Success {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("productID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return 0, false
	}
	return id, true
}

func (h *Handler) orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return 0, false
	}
	return id, true
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
