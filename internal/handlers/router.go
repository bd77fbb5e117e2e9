package handlers

import (
	"cv-analyzer/internal/services"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP surface of the service.
func NewRouter(analyzer *services.Analyzer, maxUploadBytes int64) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(AccessLog())
	router.Use(gin.Recovery())
	router.Use(CORS())

	if maxUploadBytes > 0 {
		router.MaxMultipartMemory = maxUploadBytes
	}

	analyzeHandler := NewAnalyzeHandler(analyzer, maxUploadBytes)
	router.GET("/health", analyzeHandler.Health)
	router.POST("/analyze-cv", analyzeHandler.AnalyzeText)
	router.POST("/analyze-cv-file", analyzeHandler.AnalyzeFile)

	return router
}
