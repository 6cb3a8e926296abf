// Package extract turns uploaded files into text. Each MIME type maps to a
// Strategy; adding a format means registering one more strategy.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimePlain = "text/plain"
	MimeHTML  = "text/html"
	MimePDF   = "application/pdf"
	MimeDOC   = "application/msword"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeRTF   = "application/rtf"
	MimeTRTF  = "text/rtf"
	MimeODT   = "application/vnd.oasis.opendocument.text"
	mimeBin   = "application/octet-stream"
)

var ErrUnsupportedType = errors.New("unsupported file type")

type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q", e.MimeType)
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// ExtractionError is a failure reading a file whose type is supported.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Name, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Source struct {
	Path     string
	Name     string
	MimeType string
}

type Result struct {
	Text string
	// PageCount is zero when the format has no pages or the count is unknown.
	PageCount int
}

type Strategy interface {
	Extract(ctx context.Context, src Source) (Result, error)
}

type StrategyFunc func(ctx context.Context, src Source) (Result, error)

func (f StrategyFunc) Extract(ctx context.Context, src Source) (Result, error) {
	return f(ctx, src)
}

type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(mimeType string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[Normalize(mimeType)] = s
}

func (r *Registry) Supports(mimeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.strategies[Normalize(mimeType)]
	return ok
}

// Resolve picks the MIME type used for a file. The declared type wins unless it
// is empty or generic, in which case the leading bytes are sniffed.
func (r *Registry) Resolve(declared string, head []byte) (string, error) {
	mt := Normalize(declared)
	if (mt == "" || mt == mimeBin) && len(head) > 0 {
		mt = Normalize(mimetype.Detect(head).String())
	}
	if !r.Supports(mt) {
		return mt, &UnsupportedTypeError{MimeType: mt}
	}
	return mt, nil
}

// Extract runs the strategy registered for src.MimeType. A panicking parser
// is reported as an ExtractionError.
func (r *Registry) Extract(ctx context.Context, src Source) (res Result, err error) {
	mt := Normalize(src.MimeType)
	r.mu.RLock()
	s, ok := r.strategies[mt]
	r.mu.RUnlock()
	if !ok {
		return Result{}, &UnsupportedTypeError{MimeType: mt}
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = Result{}, &ExtractionError{Name: src.Name, Err: fmt.Errorf("parser panic: %v", p)}
		}
	}()
	res, err = s.Extract(ctx, src)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			return Result{}, err
		}
		return Result{}, &ExtractionError{Name: src.Name, Err: err}
	}
	return res, nil
}

// Normalize lower-cases a media type and drops its parameters.
func Normalize(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(mimeType)
}
