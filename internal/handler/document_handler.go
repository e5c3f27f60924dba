// Package handler contains the Gin controllers for the HTTP API.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"campus-rag-go/internal/middleware"
	"campus-rag-go/internal/service"
	"campus-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DocumentHandler serves document upload, listing and deletion.
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload accepts a multipart form with the file and optional metadata fields
// department, semester and subject.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	semester := 0
	if raw := c.PostForm("semester"); raw != "" {
		semester, err = strconv.Atoi(raw)
		if err != nil || semester < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid semester"})
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	params := service.UploadParams{
		Filename:   fileHeader.Filename,
		Department: c.PostForm("department"),
		Semester:   semester,
		Subject:    c.PostForm("subject"),
	}
	if claims := middleware.CurrentClaims(c); claims != nil {
		params.UploadedBy = claims.UserID
	}

	doc, err := h.documentService.Upload(c.Request.Context(), data, params)
	switch {
	case errors.Is(err, service.ErrDuplicateContent):
		c.JSON(http.StatusConflict, gin.H{"error": "identical document already exists"})
		return
	case errors.Is(err, service.ErrUnsupportedFileType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type, expected pdf, docx, txt or xml"})
		return
	case err != nil:
		log.Error("Upload: failed to ingest document", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process upload"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "document accepted for ingestion",
		"document": doc,
	})
}

// List returns every document with its metadata, newest first.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documentService.List()
	if err != nil {
		log.Error("List: failed to list documents", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Delete removes a document together with its chunks, vectors and object.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		log.Error("Delete: failed to delete document", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}
