package services

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"cv-analyzer/internal/logger"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

// Format is one of the document formats the extractor understands.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// SupportedFormats lists every format the extractor can dispatch on.
var SupportedFormats = []Format{FormatPDF, FormatDOCX, FormatTXT}

// ParseFormat maps an extension tag (with or without a leading dot, any case)
// to a Format.
func ParseFormat(tag string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), ".")))
	switch f {
	case FormatPDF, FormatDOCX, FormatTXT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, f)
	}
}

// ExtensionOf returns the lower-cased extension of a file name without the dot,
// or "" when the name has none.
func ExtensionOf(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtractedText is trimmed UTF-8 text together with the format it came from.
type ExtractedText struct {
	Text   string
	Format Format
	Pages  int
}

type TextExtractor struct {
	sanitizer *TextSanitizer
}

func NewTextExtractor(sanitizer *TextSanitizer) *TextExtractor {
	return &TextExtractor{sanitizer: sanitizer}
}

// Extract converts a document to plain text. An empty result is not an error
// here; callers decide what an empty document means.
func (e *TextExtractor) Extract(data []byte, format Format) (*ExtractedText, error) {
	var (
		text  string
		pages int
		err   error
	)

	switch format {
	case FormatPDF:
		text, pages, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	case FormatTXT:
		text = decodeTXT(data)
	default:
		return nil, newError(ErrorKindValidation,
			fmt.Sprintf("Unsupported file type: .%s", format),
			fmt.Errorf("%w: .%s", ErrUnsupportedFormat, format))
	}
	if err != nil {
		logger.WithFields(logrus.Fields{
			"format": format,
			"bytes":  len(data),
			"error":  err.Error(),
		}).Warn("Failed to extract text from document")
		return nil, newError(ErrorKindExtraction, "File extraction error: "+err.Error(), err)
	}

	text = strings.TrimSpace(text)

	logger.WithFields(logrus.Fields{
		"format": format,
		"bytes":  len(data),
		"chars":  utf8.RuneCountInString(text),
		"pages":  pages,
	}).Info("Extracted text from document")

	// Previews carry personal data; keep them out of info-level logs
	logger.WithFields(logrus.Fields{
		"format":  format,
		"preview": e.sanitizer.Preview(text, 80),
	}).Debug("Extracted text preview")

	return &ExtractedText{Text: text, Format: format, Pages: pages}, nil
}

// extractPDF joins the text layer of every page with newlines. Pages without a
// text layer, or whose content cannot be interpreted, contribute "".
func extractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read PDF: %w", err)
	}

	numPages := reader.NumPage()
	texts := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"page":  i,
				"error": err.Error(),
			}).Warn("Failed to extract text from page")
			pageText = ""
		}
		// GetPlainText opens every text object with a newline
		texts = append(texts, strings.Trim(pageText, "\n"))
	}

	return strings.Join(texts, "\n"), numPages, nil
}

const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX document: %w", err)
	}
	defer doc.Close()

	paragraphs, err := docxParagraphs(doc.Editable().GetContent())
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX body: %w", err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// docxParagraphs walks word/document.xml and returns the text of every w:p in
// document order. Paragraphs nested in text boxes are folded into their parent.
func docxParagraphs(documentXML string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(documentXML))

	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeTXT never fails: invalid UTF-8 is decoded as ISO-8859-1.
func decodeTXT(data []byte) string {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM))
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}
