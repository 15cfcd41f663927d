package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/granasat/partledger/internal/core/domain"
	"github.com/granasat/partledger/internal/core/service"
)

// actorKey is the gin context key under which the auth middleware stores the
// authenticated user.
const actorKey = "actor"

// StockHandler translates the HTTP surface into ledger service calls.
type StockHandler struct {
	ledger *service.LedgerService
	logger *zap.Logger
}

type createStockRequest struct {
	Part            string `json:"part" binding:"required"`
	Vendor          string `json:"vendor" binding:"required"`
	VendorReference string `json:"vendorreference"`
	URL             string `json:"url"`
	Image           string `json:"image"`
	Quantity        *int   `json:"quantity" binding:"required"`
	StoragePlace    string `json:"storageplace" binding:"required"`
}

type modifyStockRequest struct {
	Stock    string `json:"stock" binding:"required"`
	Quantity *int   `json:"quantity" binding:"required"`
}

func NewStockHandler(ledger *service.LedgerService, logger *zap.Logger) *StockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StockHandler{ledger: ledger, logger: logger}
}

// GetStock serves GET /api/stock. With a search parameter it runs a substring
// search; with part and vendor it does an exact lookup for that pair.
func (h *StockHandler) GetStock(c *gin.Context) {
	if query, ok := c.GetQuery("search"); ok {
		stocks, err := h.ledger.SearchStock(c.Request.Context(), query)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": stocks})
		return
	}

	part := c.Query("part")
	vendor := c.Query("vendor")
	if part == "" || vendor == "" {
		h.writeError(c, &domain.ValidationError{Field: "query", Reason: "either search or part and vendor are required"})
		return
	}

	stock, err := h.ledger.FindStock(c.Request.Context(), part, vendor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": []domain.Stock{*stock}})
}

// GetStockByID serves GET /api/stock/:id.
func (h *StockHandler) GetStockByID(c *gin.Context) {
	stock, err := h.ledger.GetStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stock)
}

// GetQuantity serves GET /api/stock/:id/quantity from the cache when warm.
func (h *StockHandler) GetQuantity(c *gin.Context) {
	quantity, err := h.ledger.GetQuantity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stock": c.Param("id"), "quantity": quantity})
}

// CreateStock serves POST /api/stock.
func (h *StockHandler) CreateStock(c *gin.Context) {
	var req createStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	mut, err := h.ledger.CreateStock(c.Request.Context(), service.CreateStockParams{
		PartID:         req.Part,
		VendorID:       req.Vendor,
		VendorCode:     req.VendorReference,
		VendorURL:      req.URL,
		ImageURL:       req.Image,
		StoragePlaceID: req.StoragePlace,
		Quantity:       *req.Quantity,
		Actor:          c.GetString(actorKey),
		RequestID:      c.GetHeader("X-Request-ID"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "OK", "inserted": mut.Stock})
}

// ModifyStock serves PUT /api/stock. The quantity field is a signed delta.
func (h *StockHandler) ModifyStock(c *gin.Context) {
	var req modifyStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	mut, err := h.ledger.ModifyStock(c.Request.Context(), service.ModifyStockParams{
		StockID:   req.Stock,
		Delta:     *req.Quantity,
		Actor:     c.GetString(actorKey),
		RequestID: c.GetHeader("X-Request-ID"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "OK", "inserted": mut.Stock})
}

// GetTransactions serves GET /api/transactions?stock=id.
func (h *StockHandler) GetTransactions(c *gin.Context) {
	stockID := c.Query("stock")
	if stockID == "" {
		h.writeError(c, &domain.ValidationError{Field: "stock", Reason: "must not be empty"})
		return
	}

	txns, err := h.ledger.GetHistory(c.Request.Context(), stockID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": txns})
}

func (h *StockHandler) writeError(c *gin.Context, err error) {
	var (
		validationErr   *domain.ValidationError
		notFoundErr     *domain.NotFoundError
		insufficientErr *domain.InsufficientStockError
		conflictErr     *domain.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":    insufficientErr.Error(),
			"stock":    insufficientErr.StockID,
			"quantity": insufficientErr.Current,
			"delta":    insufficientErr.Delta,
		})
	case errors.Is(err, domain.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": "ledger busy, retry the request"})
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
