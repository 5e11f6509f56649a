package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/serisow/metrodoc/pipeline_type"
)

const (
	MethodNativePDF = "pdf_native"
	MethodDocconv   = "docconv"
	MethodHTML      = "html"
	MethodPlainText = "plain_text"
)

// DocumentExtractor turns uploaded files into page-level text. PDFs go
// through the native reader first; docconv (tesseract-backed for scans)
// is the fallback when the native pass yields nothing usable.
type DocumentExtractor struct {
	logger *slog.Logger
}

func NewDocumentExtractor(logger *slog.Logger) *DocumentExtractor {
	return &DocumentExtractor{
		logger: logger,
	}
}

// Extract dispatches on file type and returns the extracted pages. Every
// page's text is sanitized to valid UTF-8 before it leaves this package.
func (e *DocumentExtractor) Extract(data []byte, fileType string) ([]pipeline_type.Page, error) {
	var pages []pipeline_type.Page
	var err error

	switch normalizeFileType(fileType) {
	case "pdf":
		pages, err = e.extractPDF(data)
	case "docx", "doc":
		pages, err = e.extractWord(data)
	case "html", "htm":
		pages, err = e.extractHTML(data)
	case "txt", "md", "text":
		pages, err = e.extractPlainText(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	if err != nil {
		return nil, err
	}

	for i := range pages {
		pages[i].Text = Sanitize(pages[i].Text)
	}
	return pages, nil
}

func normalizeFileType(fileType string) string {
	ft := strings.ToLower(strings.TrimPrefix(fileType, "."))
	switch ft {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "application/msword":
		return "doc"
	case "text/html":
		return "html"
	case "text/plain", "text/markdown":
		return "txt"
	}
	return ft
}

func (e *DocumentExtractor) extractPDF(data []byte) ([]pipeline_type.Page, error) {
	pages, err := e.extractPDFNative(data)
	if err == nil && totalTextLen(pages) > 0 {
		return pages, nil
	}

	if err != nil {
		e.logger.Warn("Native PDF extraction failed, falling back to docconv",
			slog.String("error", err.Error()))
	} else {
		e.logger.Warn("Native PDF extraction produced no text, falling back to docconv")
	}

	return e.extractWithDocconv(data, "application/pdf")
}

func (e *DocumentExtractor) extractPDFNative(data []byte) ([]pipeline_type.Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %v", err)
	}

	totalPage := reader.NumPage()
	e.logger.Debug("Starting PDF text extraction",
		slog.Int("total_pages", totalPage))

	var pages []pipeline_type.Page
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			e.logger.Warn("Null page encountered",
				slog.Int("page_number", pageIndex))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("Failed to extract text from page",
				slog.Int("page_number", pageIndex),
				slog.String("error", err.Error()))
			continue
		}

		pages = append(pages, pipeline_type.Page{
			PageNo: pageIndex,
			Text:   text,
			Method: MethodNativePDF,
		})
	}

	if totalTextLen(pages) == 0 {
		return nil, fmt.Errorf("no text content extracted from PDF")
	}

	e.logger.Info("Successfully extracted text from PDF",
		slog.Int("total_pages", totalPage),
		slog.Int("total_text_length", totalTextLen(pages)))

	return pages, nil
}

func (e *DocumentExtractor) extractWord(data []byte) ([]pipeline_type.Page, error) {
	mimeType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	return e.extractWithDocconv(data, mimeType)
}

func (e *DocumentExtractor) extractWithDocconv(data []byte, mimeType string) ([]pipeline_type.Page, error) {
	result, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		e.logger.Error("Failed to convert document",
			slog.String("mime_type", mimeType),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to convert document: %v", err)
	}

	if len(result.Body) == 0 {
		return nil, fmt.Errorf("no text content extracted from document")
	}

	e.logger.Info("Successfully extracted text via docconv",
		slog.String("mime_type", mimeType),
		slog.Int("text_length", len(result.Body)))

	return []pipeline_type.Page{{PageNo: 1, Text: result.Body, Method: MethodDocconv}}, nil
}

func (e *DocumentExtractor) extractHTML(data []byte) ([]pipeline_type.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %v", err)
	}

	doc.Find("script, style, noscript").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
	})
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		// Fragment without a body element.
		text = doc.Text()
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content extracted from HTML")
	}

	return []pipeline_type.Page{{PageNo: 1, Text: text, Method: MethodHTML}}, nil
}

func (e *DocumentExtractor) extractPlainText(data []byte) ([]pipeline_type.Page, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty text document")
	}
	return []pipeline_type.Page{{PageNo: 1, Text: string(data), Method: MethodPlainText}}, nil
}

// Sanitize strips NUL bytes and replaces invalid UTF-8 sequences so the text
// can be stored in Postgres TEXT columns.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "�")
}

// JoinPages flattens extracted pages into the full document text, with page
// breaks preserved as blank lines.
func JoinPages(pages []pipeline_type.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, "\n\n")
}

func totalTextLen(pages []pipeline_type.Page) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p.Text))
	}
	return n
}
