package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cv-analyzer/internal/models"
	"cv-analyzer/internal/services"
	"cv-analyzer/internal/testutil"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBackend struct {
	server *httptest.Server
	calls  int32
}

// newStubBackend serves /api/generate with generate and /api/tags with 200.
func newStubBackend(t *testing.T, generate http.HandlerFunc) *stubBackend {
	t.Helper()
	b := &stubBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[]}`))
		case "/api/generate":
			atomic.AddInt32(&b.calls, 1)
			generate(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func respondWith(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newTestRouter(t *testing.T, baseURL string, timeout time.Duration) *gin.Engine {
	t.Helper()
	client := services.NewOllamaClient(services.ClientConfig{
		BaseURL:       baseURL,
		Model:         "llama3.2",
		Timeout:       timeout,
		HealthTimeout: time.Second,
	})
	analyzer, err := services.NewAnalyzer(services.NewTextExtractor(services.NewTextSanitizer()), client, []string{"pdf", "docx", "txt"})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return NewRouter(analyzer, 1<<20)
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func postFile(router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", filename)
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze-cv-file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rr.Body.String())
	}
	if resp.Success {
		t.Error("success must be false on errors")
	}
	return resp
}

func TestAnalyzeTextSuccess(t *testing.T) {
	backend := newStubBackend(t, respondWith(`{"response":"ERREURS:\n- Pas de titre\n\n"}`))
	router := newTestRouter(t, backend.server.URL, 5*time.Second)

	rr := postJSON(router, "/analyze-cv", `{"text": "valid content"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp models.AnalyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !resp.Success || resp.Analysis != "ERREURS:\n- Pas de titre" || resp.Model != "llama3.2" || resp.OriginalLength != 13 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if strings.Contains(rr.Body.String(), "file_extension") {
		t.Errorf("text analysis must not report a file extension: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestAnalyzeTextValidation(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		body        string
		message     string
	}{
		{"empty text", "application/json", `{"text": ""}`, "Missing 'text' field."},
		{"blank text", "application/json", `{"text": "   "}`, "Missing 'text' field."},
		{"missing field", "application/json", `{"cv": "x"}`, "Missing 'text' field."},
		{"wrong type", "application/json", `{"text": 12}`, "Missing 'text' field."},
		{"invalid json", "application/json", `{"text":`, "Missing 'text' field."},
		{"not json", "text/plain", `text=hello`, "Request must be JSON."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newStubBackend(t, respondWith(`{"response":"ok"}`))
			router := newTestRouter(t, backend.server.URL, 5*time.Second)

			req := httptest.NewRequest(http.MethodPost, "/analyze-cv", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if resp := decodeError(t, rr); resp.Error != tc.message {
				t.Errorf("error = %q, want %q", resp.Error, tc.message)
			}
			if atomic.LoadInt32(&backend.calls) != 0 {
				t.Error("backend must not be called for invalid input")
			}
		})
	}
}

func TestAnalyzeTextTimeout(t *testing.T) {
	backend := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	timeout := 300 * time.Millisecond
	router := newTestRouter(t, backend.server.URL, timeout)

	start := time.Now()
	rr := postJSON(router, "/analyze-cv", `{"text": "valid content"}`)
	elapsed := time.Since(start)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	resp := decodeError(t, rr)
	if !strings.Contains(resp.Error, "timeout") || !strings.HasPrefix(resp.Error, "Analysis failed: ") {
		t.Errorf("error = %q, want a timeout message", resp.Error)
	}
	if elapsed < timeout || elapsed > 3*time.Second {
		t.Errorf("request took %v, want about %v", elapsed, timeout)
	}
}

func TestAnalyzeTextBackendFailures(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		backend := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"model 'llama3.2' not found"}`))
		})
		rr := postJSON(newTestRouter(t, backend.server.URL, 5*time.Second), "/analyze-cv", `{"text":"cv"}`)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
		if resp := decodeError(t, rr); !strings.Contains(resp.Error, "(404)") {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		rr := postJSON(newTestRouter(t, url, 5*time.Second), "/analyze-cv", `{"text":"cv"}`)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
		if resp := decodeError(t, rr); !strings.Contains(resp.Error, "Erreur connexion") {
			t.Errorf("error = %q", resp.Error)
		}
	})
}

func TestAnalyzeFileSuccess(t *testing.T) {
	testCases := []struct {
		filename  string
		content   []byte
		extension string
		length    int
	}{
		{"cv.txt", []byte("  Jean Dupont\n"), "txt", 11},
		{"cv.pdf", testutil.BuildPDF([]string{"Jean Dupont"}), "pdf", 11},
		{"cv-two-pages.pdf", testutil.BuildPDF([]string{"Jean", "Dupont"}), "pdf", 11},
		{"cv-three-pages.pdf", testutil.BuildPDF([]string{"A", "B", "C"}), "pdf", 5},
		{"cv.docx", testutil.BuildDOCX([]string{"Jean Dupont"}), "docx", 11},
	}

	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			backend := newStubBackend(t, respondWith(`{"response":" analyse "}`))
			rr := postFile(newTestRouter(t, backend.server.URL, 5*time.Second), tc.filename, tc.content)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
			}
			var resp models.AnalyzeResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if !resp.Success || resp.Analysis != "analyse" || resp.FileExtension != tc.extension || resp.OriginalLength != tc.length {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestAnalyzeFileRejections(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		content  []byte
		contains string
	}{
		{"disallowed extension", "resume.exe", []byte("MZ"), "Allowed: pdf, docx, txt"},
		{"image-only pdf", "scan.pdf", testutil.BuildPDF([]string{""}), "File contains no text."},
		{"corrupt docx", "cv.docx", []byte("not a zip"), "File extraction error"},
		{"too large", "cv.txt", bytes.Repeat([]byte("a"), 1<<20+1), "File too large"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newStubBackend(t, respondWith(`{"response":"ok"}`))
			rr := postFile(newTestRouter(t, backend.server.URL, 5*time.Second), tc.filename, tc.content)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
			if resp := decodeError(t, rr); !strings.Contains(resp.Error, tc.contains) {
				t.Errorf("error = %q, want it to contain %q", resp.Error, tc.contains)
			}
			if atomic.LoadInt32(&backend.calls) != 0 {
				t.Error("backend must not be called for rejected files")
			}
		})
	}
}

func TestAnalyzeFileMissing(t *testing.T) {
	backend := newStubBackend(t, respondWith(`{"response":"ok"}`))
	router := newTestRouter(t, backend.server.URL, 5*time.Second)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze-cv-file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error != "No file in request." {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestAnalyzeFileBackendFailure(t *testing.T) {
	backend := newStubBackend(t, respondWith(`not json`))
	rr := postFile(newTestRouter(t, backend.server.URL, 5*time.Second), "cv.txt", []byte("Jean"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Error, "Failed to parse Ollama response") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestHealth(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		backend := newStubBackend(t, respondWith(`{"response":"ok"}`))
		assertHealth(t, newTestRouter(t, backend.server.URL, time.Second), "connected")
	})

	t.Run("error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		assertHealth(t, newTestRouter(t, srv.URL, time.Second), "error")
	})

	t.Run("disconnected", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		assertHealth(t, newTestRouter(t, url, time.Second), "disconnected")
	})
}

func assertHealth(t *testing.T, router http.Handler, ollama string) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Status != "healthy" || resp.Model != "llama3.2" || resp.Ollama != ollama {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	backend := newStubBackend(t, respondWith(`{"response":"ok"}`))
	router := newTestRouter(t, backend.server.URL, time.Second)

	req := httptest.NewRequest(http.MethodOptions, "/analyze-cv", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
