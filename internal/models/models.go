package models

// AnalyzeTextRequest is the body of POST /analyze-cv.
type AnalyzeTextRequest struct {
	Text string `json:"text" binding:"required"`
}

type AnalyzeResponse struct {
	Success        bool   `json:"success"`
	Analysis       string `json:"analysis"`
	Model          string `json:"model"`
	FileExtension  string `json:"file_extension,omitempty"`
	OriginalLength int    `json:"original_length"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Ollama string `json:"ollama"`
}
