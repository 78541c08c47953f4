package refdata

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

//go:embed data/catalog.yaml
var embeddedCatalog []byte

// Source provides the reference data catalog.
// Implementations return errors wrapping model.ErrDataUnavailable if no
// valid catalog can be produced.
type Source interface {
	Name() string
	Load(ctx context.Context) (*model.Catalog, error)
}

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported data format %q", s)
	}
}

// EmbeddedSource provides the catalog compiled into the binary.
type EmbeddedSource struct{}

func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{}
}

func (s *EmbeddedSource) Name() string { return "embedded" }

func (s *EmbeddedSource) Load(ctx context.Context) (*model.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	return DecodeYAML(embeddedCatalog)
}

type (
	FileOption func(*FileSource)
	// FileSource reads the catalog from a YAML or JSON file.
	FileSource struct {
		path     string
		format   Format
		selector string
		l        *log.Logger
	}
)

// WithFormat overrides the format derived from the file extension.
func WithFormat(f Format) FileOption {
	return func(s *FileSource) {
		s.format = f
	}
}

// WithSelector sets the jsonpath used to locate the catalog inside a JSON
// document. Ignored for YAML files.
func WithSelector(selector string) FileOption {
	return func(s *FileSource) {
		s.selector = selector
	}
}

func WithFileLogger(l *log.Logger) FileOption {
	return func(s *FileSource) {
		s.l = l
	}
}

func NewFileSource(path string, opts ...FileOption) *FileSource {
	ret := &FileSource{
		path:     path,
		selector: "$",
		l:        log.Default().Named("refdata"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.format == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			ret.format = FormatJSON
		} else {
			ret.format = FormatYAML
		}
	}
	return ret
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load(ctx context.Context) (*model.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	s.l.Debug("read reference data",
		log.String("file", s.path),
		log.String("format", string(s.format)),
		log.Int("bytes", len(data)))
	if s.format == FormatJSON {
		return DecodeJSON(data, s.selector)
	}
	return DecodeYAML(data)
}
