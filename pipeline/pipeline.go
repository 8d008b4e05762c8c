// Package pipeline gates product records and persists them, along with
// their images, as per-category files.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/bookcrawl/models"
	"github.com/aluiziolira/bookcrawl/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Append is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrInvalidRecord is returned for a product without a unique code.
	ErrInvalidRecord = errors.New("pipeline: invalid record")
	// ErrDuplicateRecord is returned for a product code already written in this run.
	ErrDuplicateRecord = errors.New("pipeline: duplicate record")
)

// DefaultDedupeSize bounds the product codes remembered per pipeline.
const DefaultDedupeSize = 100000

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(products []*models.Product) error
	Close() error
	Validate() error
}

// Pipeline validates and de-duplicates products before handing them to an
// OutputWriter, one record at a time.
type Pipeline struct {
	writer OutputWriter
	seen   *lru.Cache[string, struct{}]

	metrics metrics
	closed  bool
}

// NewPipeline wraps writer. dedupeSize caps the product codes remembered for
// duplicate detection; values <= 0 use DefaultDedupeSize.
func NewPipeline(writer OutputWriter, dedupeSize int) (*Pipeline, error) {
	if dedupeSize <= 0 {
		dedupeSize = DefaultDedupeSize
	}
	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Pipeline{
		writer:  writer,
		seen:    seen,
		metrics: newMetrics(),
	}, nil
}

// Append writes p if it carries a product code not seen before.
func (p *Pipeline) Append(product *models.Product) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if err := parser.ValidateProduct(product); err != nil {
		p.metrics.addValidation("invalid_record")
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if p.seen.Contains(product.UPC) {
		p.metrics.addValidation("duplicate_upc")
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, product.UPC)
	}

	if err := p.writer.Write([]*models.Product{product}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	p.seen.Add(product.UPC, struct{}{})
	p.metrics.processed++
	return nil
}

// Close closes the underlying writer. Further appends fail.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		return err
	}
	return nil
}

// Validate checks the output written so far.
func (p *Pipeline) Validate() error {
	return p.writer.Validate()
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// Processed returns the number of records written.
func (p *Pipeline) Processed() int64 {
	return p.metrics.processed
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_products": m.processed,
		"validation_errors":  copyValidation,
	}
}
