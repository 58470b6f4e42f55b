package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"provenance-service/internal/service"
	"provenance-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// Handler contains HTTP handlers
type Handler struct {
	provenance *service.ProvenanceService
	ledger     *service.LedgerService
	checks     []namedCheck
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(provenance *service.ProvenanceService, ledger *service.LedgerService) *Handler {
	return &Handler{
		provenance: provenance,
		ledger:     ledger,
		logger:     util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency consulted by /ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("", h.index)

		api.POST("/products/create", h.createProduct)
		api.GET("/products", h.listProducts)
		api.POST("/products/:productId/steps", h.addStep)
		api.GET("/products/:productId", h.getProduct)
		api.GET("/products/:productId/history", h.getProductHistory)
		api.GET("/products/:productId/status", h.getProductStatus)
		api.GET("/products/:productId/json", h.getMirroredProduct)

		api.GET("/mirror/products", h.listRemoteProducts)
		api.GET("/mirror/products/:productId", h.getRemoteProduct)

		api.GET("/balance/:wallet", h.balance)
		api.POST("/mint-reward", h.mintReward)
		api.POST("/transfer", h.transfer)

		api.POST("/roles/grant", h.grantRole)
		api.POST("/roles/revoke", h.revokeRole)
		api.GET("/roles/:addr", h.getRole)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "provenance-service",
		"time":    time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	failures := gin.H{}
	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			failures[nc.name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"failures": failures,
			"time":     time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// index lists the available endpoints
func (h *Handler) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "provenance-service",
		"version": "1.0.0",
		"endpoints": gin.H{
			"health": "GET /health",
			"ready":  "GET /ready",
			"token": gin.H{
				"balance":  "GET /api/balance/:wallet",
				"mint":     "POST /api/mint-reward",
				"transfer": "POST /api/transfer",
			},
			"products": gin.H{
				"create":  "POST /api/products/create",
				"list":    "GET /api/products",
				"get":     "GET /api/products/:productId",
				"json":    "GET /api/products/:productId/json",
				"addStep": "POST /api/products/:productId/steps",
				"history": "GET /api/products/:productId/history",
				"status":  "GET /api/products/:productId/status",
			},
			"mirror": gin.H{
				"list": "GET /api/mirror/products",
				"get":  "GET /api/mirror/products/:productId",
			},
			"roles": gin.H{
				"grant":  "POST /api/roles/grant",
				"revoke": "POST /api/roles/revoke",
				"get":    "GET /api/roles/:addr",
			},
		},
	})
}

// createProduct handles product registration
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.provenance.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"productId": resp.ProductID,
		"txHash":    resp.TxHash,
	})
}

// addStep handles appending a supply chain step
func (h *Handler) addStep(c *gin.Context) {
	var req service.AddStepRequest
	if !h.bind(c, &req) {
		return
	}
	req.ProductID = c.Param("productId")

	resp, err := h.provenance.AddStep(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"productId": resp.ProductID,
		"stepType":  resp.StepType,
		"txHash":    resp.TxHash,
	})
}

// listProducts lists mirrored products
func (h *Handler) listProducts(c *gin.Context) {
	products, source, err := h.provenance.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": products,
		"count":    len(products),
		"source":   source,
	})
}

// getMirroredProduct returns a product and its steps from the local mirror
func (h *Handler) getMirroredProduct(c *gin.Context) {
	product, err := h.provenance.GetMirroredProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

// listRemoteProducts lists products from the remote mirror
func (h *Handler) listRemoteProducts(c *gin.Context) {
	products, err := h.provenance.ListRemoteProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": products,
		"count":    len(products),
	})
}

// getRemoteProduct returns a product and its steps from the remote mirror
func (h *Handler) getRemoteProduct(c *gin.Context) {
	product, err := h.provenance.GetRemoteProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

// getProduct reads a product from the ledger
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.ledger.GetProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

// getProductHistory reads the ledger step history of a product
func (h *Handler) getProductHistory(c *gin.Context) {
	productID := c.Param("productId")
	steps, err := h.ledger.GetProductHistory(c.Request.Context(), productID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"productId": productID,
		"steps":     steps,
	})
}

// getProductStatus reads the current status of a product
func (h *Handler) getProductStatus(c *gin.Context) {
	view, err := h.ledger.GetCurrentStatus(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{
		"success":    true,
		"productId":  view.ProductID,
		"status":     view.Status,
		"statusName": view.StatusName,
		"source":     view.Source,
	}
	if view.Location != "" {
		resp["location"] = view.Location
	}
	c.JSON(http.StatusOK, resp)
}

// balance returns the token balance of a wallet
func (h *Handler) balance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance.String()})
}

// mintReward mints reward tokens
func (h *Handler) mintReward(c *gin.Context) {
	var req service.TokenRequest
	if !h.bind(c, &req) {
		return
	}

	tx, err := h.ledger.Mint(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tx": tx})
}

// transfer sends tokens from the admin account
func (h *Handler) transfer(c *gin.Context) {
	var req service.TokenRequest
	if !h.bind(c, &req) {
		return
	}

	tx, err := h.ledger.Transfer(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tx": tx})
}

// grantRole assigns a contract role
func (h *Handler) grantRole(c *gin.Context) {
	var req service.RoleRequest
	if !h.bind(c, &req) {
		return
	}

	tx, err := h.ledger.GrantRole(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tx": tx})
}

// revokeRole removes a contract role
func (h *Handler) revokeRole(c *gin.Context) {
	var req service.RoleRequest
	if !h.bind(c, &req) {
		return
	}

	tx, err := h.ledger.RevokeRole(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tx": tx})
}

// getRole returns the role of an address
func (h *Handler) getRole(c *gin.Context) {
	addr := c.Param("addr")
	role, err := h.ledger.GetRole(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "addr": addr, "role": role})
}

// bind decodes the JSON body, answering 400 when it is malformed.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"stage":   service.StageValidation,
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// fail writes the failure envelope for err.
func (h *Handler) fail(c *gin.Context, err error) {
	stage := service.Stage(err)
	code := statusCode(stage)

	body := gin.H{
		"success": false,
		"stage":   stage,
		"error":   err.Error(),
	}
	var mirrorErr *service.MirrorError
	if errors.As(err, &mirrorErr) {
		body["txHash"] = mirrorErr.TxHash
	}

	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("stage", stage),
			zap.Error(err))
	}
	c.JSON(code, body)
}

func statusCode(stage string) int {
	switch stage {
	case service.StageValidation:
		return http.StatusBadRequest
	case service.StageNotFound:
		return http.StatusNotFound
	case service.StageConflict:
		return http.StatusConflict
	case service.StageAvailability, service.StageConfiguration:
		return http.StatusServiceUnavailable
	case service.StageLedger:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
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
