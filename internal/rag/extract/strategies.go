package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var logger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Text Extractor") })

var officeTypes = []string{MimeDOC, MimeDOCX, MimeRTF, MimeTRTF, MimeODT}

func init() {
	// page counting only; no pdfcpu config files on disk
	api.DisableConfigDir()
}

// NewDefaultRegistry registers the built-in strategies. In placeholder mode PDF
// and office formats produce a stub naming the file; parse mode reads them.
func NewDefaultRegistry(mode string) *Registry {
	r := NewRegistry()
	r.Register(MimePlain, StrategyFunc(Verbatim))
	r.Register(MimeHTML, StrategyFunc(Verbatim))

	if mode == config.ExtractionModeParse {
		r.Register(MimePDF, StrategyFunc(ParsePDF))
		for _, mt := range officeTypes {
			r.Register(mt, StrategyFunc(ParseOffice))
		}
		return r
	}

	r.Register(MimePDF, StrategyFunc(PDFPlaceholder))
	for _, mt := range officeTypes {
		r.Register(mt, StrategyFunc(OfficePlaceholder))
	}
	return r
}

// Verbatim returns the file bytes as text, markup included.
func Verbatim(_ context.Context, src Source) (Result, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return Result{}, &ExtractionError{Name: src.Name, Err: err}
	}
	return Result{Text: string(data)}, nil
}

func PDFPlaceholder(_ context.Context, src Source) (Result, error) {
	if _, err := os.Stat(src.Path); err != nil {
		return Result{}, &ExtractionError{Name: src.Name, Err: err}
	}
	return Result{
		Text:      fmt.Sprintf("PDF content from %s (text extraction not yet available)", src.Name),
		PageCount: pageCount(src.Path),
	}, nil
}

func OfficePlaceholder(_ context.Context, src Source) (Result, error) {
	if _, err := os.Stat(src.Path); err != nil {
		return Result{}, &ExtractionError{Name: src.Name, Err: err}
	}
	return Result{Text: fmt.Sprintf("Document content from %s (text extraction not yet available)", src.Name)}, nil
}

// pageCount is best effort; a file pdfcpu cannot read reports zero pages.
func pageCount(path string) int {
	n, err := api.PageCountFile(path)
	if err != nil {
		logger().Debug("Could not count pdf pages", "path", path, "error", err)
		return 0
	}
	return n
}

// ParsePDF extracts the plain text of every readable page, pages separated by
// blank lines so the chunker sees page boundaries.
func ParsePDF(ctx context.Context, src Source) (Result, error) {
	log := logger().WithTrace(ctx).With("file", src.Name)
	f, err := pdf.Open(src.Path)
	if err != nil {
		return Result{}, &ExtractionError{Name: src.Name, Err: fmt.Errorf("failed to open pdf: %w", err)}
	}

	numPages := f.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, &ExtractionError{Name: src.Name, Err: err}
		}
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page, config.PageExtractTimeout)
		if err != nil {
			log.Error("Error parsing page content", "page", i, "error", err)
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	log.Debug("Parsed pdf", "pages", numPages, "withText", len(pages))

	return Result{Text: strings.Join(pages, "\n\n"), PageCount: numPages}, nil
}

// ParseOffice reads .doc, .docx, .rtf and .odt files.
func ParseOffice(_ context.Context, src Source) (Result, error) {
	text, err := cat.File(src.Path)
	if err != nil {
		return Result{}, &ExtractionError{Name: src.Name, Err: err}
	}
	return Result{Text: text}, nil
}

func protectExtract(page pdf.Page, timeout time.Duration) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				resChan <- result{err: fmt.Errorf("page parser panic: %v", p)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(timeout):
		return "", errors.New("page extraction timed out")
	}
}
