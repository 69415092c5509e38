// Package pipeline answers a question about a dataset: generate SQL, repair
// and validate it, execute it in a private store, then summarize and chart the
// result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/analysis"
	"github.com/KaramelBytes/askcsv/internal/chart"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/generator"
	"github.com/KaramelBytes/askcsv/internal/metrics"
	"github.com/KaramelBytes/askcsv/internal/query"
	"github.com/KaramelBytes/askcsv/internal/store"
)

// EmptyResultMessage is the fixed error text for a query that matched no rows.
const EmptyResultMessage = "Query returned no results"

// ErrEmptyResult marks a successful query with zero rows.
var ErrEmptyResult = errors.New(EmptyResultMessage)

// ErrorKind classifies a failed response.
type ErrorKind string

const (
	KindGenerationExhausted ErrorKind = "generation_exhausted"
	KindRateLimited         ErrorKind = "rate_limited"
	KindInvalidQuery        ErrorKind = "invalid_query"
	KindExecution           ErrorKind = "execution_error"
	KindEmptyResult         ErrorKind = "empty_result"
	KindBadRequest          ErrorKind = "bad_request"
	KindInternal            ErrorKind = "internal"
)

// Request is one question about one dataset. When SQL is set generation is
// skipped and the text goes straight to repair.
type Request struct {
	Dataset  *dataset.Dataset
	Question string
	SQL      string
}

// Response is the uniform outcome of Run. Exactly one of the success fields
// (Result and friends) or Error is populated; SQLQuery is set whenever a
// query text was produced.
type Response struct {
	SQLQuery string                    `json:"sql_query,omitempty"`
	Result   []map[string]any          `json:"result,omitempty"`
	Columns  []string                  `json:"columns,omitempty"`
	Summary  map[string]analysis.Stats `json:"summary,omitempty"`
	Chart    *chart.Spec               `json:"chart,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Err is the underlying typed error.
	Err error `json:"-"`
	// RequestID correlates log lines for this run.
	RequestID string `json:"-"`
	// Raw is the generator output before repair.
	Raw string `json:"-"`
	// Repairs names the repair rules that changed the text.
	Repairs []string `json:"-"`
	// Rows is the typed result backing Result.
	Rows *store.Result `json:"-"`
}

// OK reports whether the run produced a result.
func (r *Response) OK() bool { return r.Error == "" }

// Pipeline wires a generator to the repair, execution and analysis stages.
type Pipeline struct {
	gen          generator.Generator
	logger       *zap.Logger
	sampleRows   int
	queryTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSampleRows sets how many dataset rows go into the prompt.
func WithSampleRows(n int) Option { return func(p *Pipeline) { p.sampleRows = n } }

// WithQueryTimeout bounds materialization and execution.
func WithQueryTimeout(d time.Duration) Option { return func(p *Pipeline) { p.queryTimeout = d } }

// New builds a pipeline. gen may be nil when every request carries SQL.
func New(gen generator.Generator, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		gen:          gen,
		logger:       logger.Named("pipeline"),
		sampleRows:   generator.DefaultSampleRows,
		queryTimeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Prompt returns the prompt Run would send for req.
func (p *Pipeline) Prompt(req Request) generator.Prompt {
	return generator.NewPrompt(req.Dataset, req.Question, p.sampleRows)
}

// Run executes every stage for req. It never returns an error and never
// panics; failures are reported through Response.Error.
func (p *Pipeline) Run(ctx context.Context, req Request) (resp *Response) {
	resp = &Response{RequestID: uuid.NewString()}
	log := p.logger.With(zap.String("request_id", resp.RequestID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", zap.Any("panic", r), zap.Stack("stack"))
			resp.fail(KindInternal, fmt.Errorf("internal error: %v", r))
		}
	}()

	if req.Dataset == nil {
		resp.fail(KindBadRequest, errors.New("no dataset loaded"))
		return resp
	}
	if req.Question == "" && req.SQL == "" {
		resp.fail(KindBadRequest, errors.New("a question is required"))
		return resp
	}

	raw := req.SQL
	if raw == "" {
		if p.gen == nil {
			resp.fail(KindGenerationExhausted, &generator.ExhaustedError{Cause: generator.ErrNoBackends})
			return resp
		}
		var err error
		raw, err = stage(ctx, "generate", func(ctx context.Context) (string, error) {
			return p.gen.Generate(ctx, p.Prompt(req))
		})
		if err != nil {
			log.Warn("generation failed", zap.Error(err))
			resp.fail(generationKind(err), err)
			return resp
		}
	}
	resp.Raw = raw

	columns := dataset.Describe(req.Dataset).ColumnNames()
	g, err := stage(ctx, "repair", func(context.Context) (query.Generated, error) {
		return query.Prepare(raw, columns)
	})
	resp.Repairs = g.Rules
	resp.SQLQuery = g.Repaired
	if resp.SQLQuery == "" {
		resp.SQLQuery = raw
	}
	if err != nil {
		log.Info("query rejected", zap.String("sql", resp.SQLQuery), zap.Error(err))
		resp.fail(KindInvalidQuery, err)
		return resp
	}
	if len(g.Rules) > 0 {
		log.Debug("query repaired", zap.String("raw", raw), zap.String("sql", g.Repaired), zap.Strings("rules", g.Rules))
	}

	res, err := stage(ctx, "execute", func(ctx context.Context) (*store.Result, error) {
		if p.queryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
			defer cancel()
		}
		return store.Run(ctx, req.Dataset, g.Repaired)
	})
	if err != nil {
		var ee *store.ExecutionError
		if errors.As(err, &ee) {
			log.Info("query failed", zap.String("sql", g.Repaired), zap.Error(err))
			resp.fail(KindExecution, err)
			return resp
		}
		log.Error("store failed", zap.Error(err))
		resp.fail(KindInternal, err)
		return resp
	}
	if res.Empty() {
		resp.fail(KindEmptyResult, ErrEmptyResult)
		return resp
	}

	_, _ = stage(ctx, "analyze", func(context.Context) (struct{}, error) {
		resp.Rows = res
		resp.Columns = res.Columns
		resp.Result = res.Records()
		resp.Summary = analysis.Summarize(res)
		spec := chart.Select(res.Columns, analysis.Classify(res))
		if !spec.None() {
			spec.Data = chart.BuildData(spec, res)
			resp.Chart = &spec
		}
		return struct{}{}, nil
	})
	log.Info("query answered",
		zap.String("sql", resp.SQLQuery),
		zap.Int("rows", len(res.Rows)),
		zap.String("chart", chartKind(resp.Chart)))
	return resp
}

// fail records err in the error shape. Execution failures keep the engine
// message under the "Error executing SQL query" prefix.
func (r *Response) fail(kind ErrorKind, err error) {
	r.Err = err
	r.ErrorKind = kind
	r.Error = err.Error()
	var ee *store.ExecutionError
	if kind == KindExecution && errors.As(err, &ee) {
		r.Error = fmt.Sprintf("Error executing SQL query: %v", ee.Err)
	}
	r.Result, r.Columns, r.Summary, r.Chart, r.Rows = nil, nil, nil, nil, nil
}

func generationKind(err error) ErrorKind {
	var rl *generator.RateLimitedError
	if errors.As(err, &rl) {
		return KindRateLimited
	}
	var ex *generator.ExhaustedError
	if errors.As(err, &ex) {
		return KindGenerationExhausted
	}
	if generator.IsRateLimited(err) {
		return KindRateLimited
	}
	return KindGenerationExhausted
}

// stage runs f and records its outcome and duration.
func stage[T any](ctx context.Context, name string, f func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := f(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStage(name, status, time.Since(start))
	return out, err
}

func chartKind(s *chart.Spec) string {
	if s == nil {
		return string(chart.KindNone)
	}
	return string(s.Kind)
}
