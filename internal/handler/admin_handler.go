package handler

import (
	"errors"
	"net/http"
	"strconv"

	"campus-rag-go/internal/model"
	"campus-rag-go/internal/service"
	"campus-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler serves the admin dashboard API.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Stats reports corpus-level counters.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats()
	if err != nil {
		log.Error("Stats: failed to collect stats", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateSource registers a new crawl target.
func (h *AdminHandler) CreateSource(c *gin.Context) {
	var req model.ScrapeSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and url are required"})
		return
	}

	source, err := h.adminService.CreateSource(req)
	if err != nil {
		log.Error("CreateSource: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create scrape source"})
		return
	}
	c.JSON(http.StatusCreated, source)
}

// ListSources returns every crawl target.
func (h *AdminHandler) ListSources(c *gin.Context) {
	sources, err := h.adminService.ListSources()
	if err != nil {
		log.Error("ListSources: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scrape sources"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// UpdateSource edits a crawl target.
func (h *AdminHandler) UpdateSource(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}
	var req model.ScrapeSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and url are required"})
		return
	}

	source, err := h.adminService.UpdateSource(uint(id), req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scrape source not found"})
			return
		}
		log.Error("UpdateSource: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update scrape source"})
		return
	}
	c.JSON(http.StatusOK, source)
}

// DeleteSource removes a crawl target.
func (h *AdminHandler) DeleteSource(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}
	if err := h.adminService.DeleteSource(uint(id)); err != nil {
		log.Error("DeleteSource: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete scrape source"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "scrape source deleted"})
}

// TriggerScrape runs one crawl pass and returns its outcome. The pass is
// synchronous, so the response carries the real tallies.
func (h *AdminHandler) TriggerScrape(c *gin.Context) {
	stats := h.adminService.TriggerCrawl(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "crawl finished",
		"stats":   stats,
	})
}

// SampleChunks returns a few stored chunks for ingestion inspection.
func (h *AdminHandler) SampleChunks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	chunks, err := h.adminService.SampleChunks(limit)
	if err != nil {
		log.Error("SampleChunks: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sample chunks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

// DebugSearch runs an unfiltered nearest-neighbor query with distances.
func (h *AdminHandler) DebugSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q parameter"})
		return
	}
	topK, _ := strconv.Atoi(c.DefaultQuery("topK", "10"))

	hits, err := h.adminService.DebugSearch(c.Request.Context(), query, topK)
	if err != nil {
		log.Error("DebugSearch: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}
