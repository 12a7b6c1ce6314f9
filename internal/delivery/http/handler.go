package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shelfscore/backend/internal/domain"
	"github.com/shelfscore/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scans      *usecase.ScanService
	resolution *usecase.ResolutionService
	ledger     domain.ScanLedgerRepository
}

// NewHandler creates a new HTTP handler
func NewHandler(
	scans *usecase.ScanService,
	resolution *usecase.ResolutionService,
	ledger domain.ScanLedgerRepository,
) *Handler {
	return &Handler{scans: scans, resolution: resolution, ledger: ledger}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shelfscore-backend",
		"version": "1.0.0",
	})
}

// resolveRequest carries either a barcode or a name/brand pair.
type resolveRequest struct {
	Barcode     string `json:"barcode"`
	ProductName string `json:"productName"`
	Brand       string `json:"brand"`
}

// ResolveProduct resolves a barcode through the waterfall, or derives
// an identity-only response when the caller has no barcode.
func (h *Handler) ResolveProduct(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Barcode == "" && req.ProductName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode or productName is required"})
		return
	}

	if req.Barcode == "" {
		identity := usecase.ResolveIdentity(req.ProductName, req.Brand)
		c.JSON(http.StatusOK, gin.H{"identity": identity})
		return
	}

	record, err := h.resolution.ResolveBarcode(c.Request.Context(), req.Barcode)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolution failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity": usecase.ResolveIdentity(record.Name, record.Brand),
		"product":  record,
	})
}

// scanRequest is one evaluation event submission.
type scanRequest struct {
	UserID      string          `json:"userId" binding:"required"`
	Barcode     string          `json:"barcode"`
	ProductName string          `json:"productName"`
	Brand       string          `json:"brand"`
	Evaluation  json.RawMessage `json:"evaluation" binding:"required"`
	Location    *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
}

// RecordScan validates an externally-produced evaluation, folds it into
// the consensus, and appends it to the ledger.
func (h *Handler) RecordScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	scanReq := usecase.ScanRequest{
		UserID:      req.UserID,
		Barcode:     req.Barcode,
		ProductName: req.ProductName,
		Brand:       req.Brand,
		Evaluation:  req.Evaluation,
	}
	if req.Location != nil {
		scanReq.Lat = &req.Location.Lat
		scanReq.Lon = &req.Location.Lon
	}

	result, err := h.scans.RecordScan(c.Request.Context(), scanReq)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "barcode or productName is required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"scanId":    result.Event.ScanID,
		"score":     result.Event.Score,
		"verdict":   result.Event.Verdict,
		"identity":  result.Identity,
		"product":   result.Product,
		"consensus": result.Consensus,
		"stats":     result.Stats,
		"geo":       result.Event.Geo,
	})
}

// GetConsensus returns the consensus for an identity key, flagging
// whether it has enough samples to be applied.
func (h *Handler) GetConsensus(c *gin.Context) {
	identityKey := c.Param("identityKey")

	record, trustworthy, err := h.scans.ConsensusFor(c.Request.Context(), identityKey)
	if err != nil {
		if errors.Is(err, domain.ErrConsensusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no consensus for identity"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "consensus lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"consensus":   record,
		"trustworthy": trustworthy,
	})
}

// GetStats returns the rolling statistics.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats lookup failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUserScans returns a user's recent visible scans, newest first.
func (h *Handler) ListUserScans(c *gin.Context) {
	userID := c.Param("userId")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	events, err := h.ledger.RecentByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": events})
}

// HideScan soft-deletes a scan event.
func (h *Handler) HideScan(c *gin.Context) {
	scanID := c.Param("scanId")

	if err := h.ledger.Hide(c.Request.Context(), scanID); err != nil {
		if errors.Is(err, domain.ErrScanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hide failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
