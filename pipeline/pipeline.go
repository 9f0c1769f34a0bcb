// Package pipeline chains the sanitization stages over a single
// document: resource cleaning, hidden data scanning, then metadata
// protection. Stages are optional; an unset stage is skipped.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kartik4091/pdfsanitize/clean"
	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/observability"
	"github.com/kartik4091/pdfsanitize/report"
	"github.com/kartik4091/pdfsanitize/scan"
	"github.com/kartik4091/pdfsanitize/secure"
)

// Result aggregates one run. Stage fields are nil when the stage was
// not configured.
type Result struct {
	RunID      string
	Started    time.Time
	Duration   time.Duration
	Clean      *clean.Stats
	Scan       *scan.Result
	Secure     *secure.Stats
	Signatures []secure.Signature
}

// Pipeline runs configured stages in order. Zero stages is legal and
// does nothing, which keeps callers free to compose only what they
// need.
type Pipeline struct {
	cleaner *clean.Cleaner
	scanner *scan.Scanner
	handler *secure.Handler
	log     observability.Logger
	tracer  observability.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCleaner adds the resource cleaning stage.
func WithCleaner(c *clean.Cleaner) Option {
	return func(p *Pipeline) { p.cleaner = c }
}

// WithScanner adds the hidden data scanning stage.
func WithScanner(s *scan.Scanner) Option {
	return func(p *Pipeline) { p.scanner = s }
}

// WithHandler adds the metadata protection stage. The handler must be
// configured before Run is called.
func WithHandler(h *secure.Handler) Option {
	return func(p *Pipeline) { p.handler = h }
}

// WithLogger sets the pipeline logger.
func WithLogger(l observability.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithTracer sets the pipeline tracer.
func WithTracer(t observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New creates a Pipeline from the given stages.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		log:    observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the configured stages against doc. The first stage
// error aborts the run; stats from stages that already completed are
// still returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, doc *raw.Document) (*Result, error) {
	ctx, span := p.tracer.StartSpan(ctx, "pipeline.Run")
	defer span.Finish()

	result := &Result{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	log := p.log.With(observability.String("run", result.RunID))
	span.SetTag("run", result.RunID)

	if p.cleaner != nil {
		stats, err := p.cleaner.Clean(ctx, doc)
		if err != nil {
			span.SetError(err)
			return result, fmt.Errorf("clean stage: %w", err)
		}
		result.Clean = stats
		log.Info("clean stage done", observability.Int("removed", stats.ResourcesRemoved))
	}

	if p.scanner != nil {
		scanResult, err := p.scanner.Scan(ctx, doc)
		if err != nil {
			span.SetError(err)
			return result, fmt.Errorf("scan stage: %w", err)
		}
		result.Scan = scanResult
		log.Info("scan stage done", observability.Int("matches", scanResult.Stats.InstancesFound))
	}

	if p.handler != nil {
		stats, err := p.handler.ProcessMetadata(ctx, doc)
		if err != nil {
			span.SetError(err)
			return result, fmt.Errorf("secure stage: %w", err)
		}
		result.Secure = stats
		result.Signatures = p.handler.LastSignatures()
		log.Info("secure stage done", observability.Int("encrypted", stats.FieldsEncrypted))
	}

	result.Duration = time.Since(result.Started)
	return result, nil
}

// WriteReport renders a run's result as Markdown.
func (p *Pipeline) WriteReport(result *Result, w io.Writer) error {
	return report.NewMarkdownWriter(w).Write(&report.Summary{
		RunID:     result.RunID,
		Generated: result.Started,
		Clean:     result.Clean,
		Scan:      result.Scan,
		Secure:    result.Secure,
	})
}
