package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cv-analyzer/internal/logger"
	"cv-analyzer/internal/models"
	"cv-analyzer/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is allowed on top of the file limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

type AnalyzeHandler struct {
	analyzer       *services.Analyzer
	maxUploadBytes int64
}

func NewAnalyzeHandler(analyzer *services.Analyzer, maxUploadBytes int64) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:       analyzer,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *AnalyzeHandler) AnalyzeText(c *gin.Context) {
	logger.Info("Received /analyze-cv request")

	if !isJSONContentType(c.ContentType()) {
		respondError(c, http.StatusBadRequest, "Request must be JSON.")
		return
	}

	var request models.AnalyzeTextRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Validation error for /analyze-cv")
		respondError(c, http.StatusBadRequest, "Missing 'text' field.")
		return
	}

	analysis, err := h.analyzer.AnalyzeText(c.Request.Context(), request.Text)
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AnalyzeResponse{
		Success:        true,
		Analysis:       analysis.Text,
		Model:          analysis.Model,
		OriginalLength: analysis.OriginalLength,
	})
}

func (h *AnalyzeHandler) AnalyzeFile(c *gin.Context) {
	logger.Info("Received /analyze-cv-file request")

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusBadRequest, h.tooLargeMessage())
			return
		}
		respondError(c, http.StatusBadRequest, "No file in request.")
		return
	}

	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		respondError(c, http.StatusBadRequest, h.tooLargeMessage())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "File extraction error: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, "File extraction error: "+err.Error())
		return
	}

	logger.WithFields(logrus.Fields{
		"filename": fileHeader.Filename,
		"bytes":    len(data),
	}).Info("Received CV file")

	analysis, err := h.analyzer.AnalyzeDocument(c.Request.Context(), services.UploadedDocument{
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AnalyzeResponse{
		Success:        true,
		Analysis:       analysis.Text,
		Model:          analysis.Model,
		FileExtension:  analysis.FileExtension,
		OriginalLength: analysis.OriginalLength,
	})
}

// Health always answers 200; the backend state is reported in the body.
func (h *AnalyzeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status: "healthy",
		Model:  h.analyzer.Model(),
		Ollama: string(h.analyzer.BackendStatus(c.Request.Context())),
	})
}

func (h *AnalyzeHandler) tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum size: %d MB", h.maxUploadBytes>>20)
}

func isJSONContentType(contentType string) bool {
	return contentType == binding.MIMEJSON || strings.HasSuffix(contentType, "+json")
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   message,
	})
}

// respondPipelineError maps classified failures to 400 for bad input and 500
// for everything that happened at or after the model call.
func respondPipelineError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	if kind.IsClientError() {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	logger.WithFields(logrus.Fields{
		"kind":  kind,
		"error": err.Error(),
		"path":  c.Request.URL.Path,
	}).Error("Analysis failed")
	respondError(c, http.StatusInternalServerError, "Analysis failed: "+err.Error())
}
