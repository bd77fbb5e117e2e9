package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"cv-analyzer/internal/logger"

	"github.com/sirupsen/logrus"
)

// UploadedDocument is a file received for analysis. It lives for one request.
type UploadedDocument struct {
	Filename string
	Data     []byte
}

// Analysis is the successful outcome of one analysis request.
type Analysis struct {
	Text           string
	Model          string
	FileExtension  string
	OriginalLength int
}

// Analyzer validates input, extracts text when needed, builds the prompt and
// runs a single inference call. It keeps no per-request state.
type Analyzer struct {
	extractor *TextExtractor
	client    InferenceClient
	allowed   []Format
}

// NewAnalyzer restricts uploads to allowedExtensions, which must all be
// supported formats.
func NewAnalyzer(extractor *TextExtractor, client InferenceClient, allowedExtensions []string) (*Analyzer, error) {
	allowed := make([]Format, 0, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		f, err := ParseFormat(ext)
		if err != nil {
			return nil, err
		}
		allowed = append(allowed, f)
	}
	if len(allowed) == 0 {
		allowed = append(allowed, SupportedFormats...)
	}

	return &Analyzer{
		extractor: extractor,
		client:    client,
		allowed:   allowed,
	}, nil
}

func (a *Analyzer) Model() string {
	return a.client.Model()
}

// AllowedExtensions returns the accepted upload extensions in configured order.
func (a *Analyzer) AllowedExtensions() []string {
	exts := make([]string, len(a.allowed))
	for i, f := range a.allowed {
		exts[i] = string(f)
	}
	return exts
}

func (a *Analyzer) BackendStatus(ctx context.Context) BackendStatus {
	return a.client.Health(ctx)
}

// AnalyzeText analyzes raw résumé text.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newError(ErrorKindValidation, "Missing 'text' field.", nil)
	}

	return a.analyze(ctx, text, "")
}

// AnalyzeDocument extracts the text of an uploaded file and analyzes it.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, doc UploadedDocument) (*Analysis, error) {
	format, err := a.resolveFormat(doc.Filename)
	if err != nil {
		return nil, err
	}

	extracted, err := a.extractor.Extract(doc.Data, format)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"filename": doc.Filename,
		"format":   format,
		"chars":    utf8.RuneCountInString(extracted.Text),
	}).Info("Document text extracted")

	if extracted.Text == "" {
		return nil, newError(ErrorKindExtraction, "File contains no text.", ErrNoText)
	}

	return a.analyze(ctx, extracted.Text, string(format))
}

func (a *Analyzer) resolveFormat(filename string) (Format, error) {
	invalid := newError(ErrorKindValidation,
		fmt.Sprintf("Invalid file. Allowed: %s", strings.Join(a.AllowedExtensions(), ", ")),
		ErrUnsupportedFormat)

	ext := ExtensionOf(filename)
	if strings.TrimSpace(filename) == "" || ext == "" {
		return "", invalid
	}
	for _, f := range a.allowed {
		if string(f) == ext {
			return f, nil
		}
	}
	return "", invalid
}

func (a *Analyzer) analyze(ctx context.Context, text, extension string) (*Analysis, error) {
	originalLength := utf8.RuneCountInString(text)
	prompt := BuildAnalysisPrompt(text)

	logger.WithFields(logrus.Fields{
		"model":           a.client.Model(),
		"original_length": originalLength,
		"file_extension":  extension,
	}).Info("Starting CV analysis")

	result, err := a.client.Infer(ctx, prompt)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"kind":  KindOf(err),
			"error": err.Error(),
		}).Error("CV analysis failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"model":          result.Model,
		"analysis_chars": result.Chars,
	}).Info("CV analysis complete")

	return &Analysis{
		Text:           result.Text,
		Model:          a.client.Model(),
		FileExtension:  extension,
		OriginalLength: originalLength,
	}, nil
}
