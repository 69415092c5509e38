package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/askcsv/internal/ai"
	"github.com/KaramelBytes/askcsv/internal/chart"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/generator"
	"github.com/KaramelBytes/askcsv/internal/metrics"
)

type fixedGenerator struct {
	text   string
	err    error
	prompt generator.Prompt
}

func (f *fixedGenerator) Generate(_ context.Context, p generator.Prompt) (string, error) {
	f.prompt = p
	return f.text, f.err
}

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, generator.Prompt) (string, error) {
	panic("backend exploded")
}

type failingRuntime struct{ err error }

func (f failingRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return nil, f.err
}

func load(t *testing.T, csv string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.LoadCSV(strings.NewReader(csv), "test.csv", dataset.LoadOptions{})
	require.NoError(t, err)
	return ds
}

func prices(t *testing.T) *dataset.Dataset {
	return load(t, `price,brand
10.5,Acme
20,Acme
30.25,Globex
12,Initech
18.75,Globex
`)
}

func TestAggregateWithoutGroupingIsRepairedToBoxplot(t *testing.T) {
	gen := &fixedGenerator{text: "SQL: SELECT brand, AVG(price) FROM data_table"}
	resp := New(gen, nil).Run(context.Background(), Request{Dataset: prices(t), Question: "average price by brand"})

	require.True(t, resp.OK(), resp.Error)
	require.True(t, strings.HasPrefix(resp.SQLQuery, "SELECT"))
	require.Contains(t, resp.SQLQuery, "data_table")
	require.Contains(t, resp.SQLQuery, "GROUP BY brand")
	require.NotEmpty(t, resp.Repairs)

	require.Equal(t, []string{"brand", "AVG(price)"}, resp.Columns)
	require.Len(t, resp.Result, 3)
	brands := map[string]bool{}
	for _, rec := range resp.Result {
		brands[rec["brand"].(dataset.Value).S] = true
		require.True(t, rec["AVG(price)"].(dataset.Value).IsNumber())
	}
	require.Len(t, brands, 3)

	require.NotNil(t, resp.Chart)
	require.Equal(t, chart.KindBoxplot, resp.Chart.Kind)
	require.Equal(t, "brand", resp.Chart.X)
	require.Equal(t, "AVG(price)", resp.Chart.Y)
	require.Contains(t, resp.Summary, "AVG(price)")
	require.NotContains(t, resp.Summary, "brand")

	require.Equal(t, "average price by brand", gen.prompt.Question)
	require.Equal(t, dataset.TableName, gen.prompt.Schema.Table)
}

func TestSingleNumericColumnIsHistogram(t *testing.T) {
	ds := load(t, "age\n23\n35\n41\n29\n52\n")
	resp := New(&fixedGenerator{text: "SELECT age FROM data_table"}, nil).
		Run(context.Background(), Request{Dataset: ds, Question: "distribution of age"})

	require.True(t, resp.OK(), resp.Error)
	require.Equal(t, chart.KindHistogram, resp.Chart.Kind)
	require.True(t, resp.Chart.Density)
	require.NotNil(t, resp.Chart.Data)
	require.NotEmpty(t, resp.Chart.Data.Bins)
	require.Equal(t, 5, resp.Summary["age"].Count)
}

func TestSuppliedSQLMissingSelectIsRepaired(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "price FROM data_table"})
	require.True(t, resp.OK(), resp.Error)
	require.True(t, strings.HasPrefix(resp.SQLQuery, "SELECT price FROM data_table"))
	require.Len(t, resp.Result, 5)
}

func TestDanglingWhereIsDropped(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT brand FROM data_table WHERE"})
	require.True(t, resp.OK(), resp.Error)
	require.NotContains(t, strings.ToUpper(resp.SQLQuery), "WHERE")
	require.Equal(t, chart.KindBar, resp.Chart.Kind)
}

func TestEmptyResultHasFixedShape(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT * FROM data_table WHERE price > 1000"})
	require.False(t, resp.OK())
	require.Equal(t, EmptyResultMessage, resp.Error)
	require.Equal(t, KindEmptyResult, resp.ErrorKind)
	require.ErrorIs(t, resp.Err, ErrEmptyResult)
	require.Contains(t, resp.SQLQuery, "price > 1000")

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"error", "error_kind", "sql_query"}, jsonKeys(t, b))
}

func TestQuotaFailuresSurfaceAsRateLimited(t *testing.T) {
	quota := errors.New("googleapi: Error 429: Resource has been exhausted (e.g. check quota)")
	chain := generator.NewChain(nil,
		&generator.Backend{Name: "gemini", Runtime: failingRuntime{err: errors.New("connection reset")}},
		&generator.Backend{Name: "inference", Runtime: failingRuntime{err: quota}},
	)
	resp := New(chain, nil).Run(context.Background(), Request{Dataset: prices(t), Question: "anything"})
	require.False(t, resp.OK())
	require.Equal(t, KindRateLimited, resp.ErrorKind)
	var rl *generator.RateLimitedError
	require.ErrorAs(t, resp.Err, &rl)
	require.Empty(t, resp.SQLQuery)
}

func TestGenerationExhausted(t *testing.T) {
	chain := generator.NewChain(nil,
		&generator.Backend{Name: "ollama", Runtime: failingRuntime{err: errors.New("connection refused")}},
	)
	resp := New(chain, nil).Run(context.Background(), Request{Dataset: prices(t), Question: "anything"})
	require.Equal(t, KindGenerationExhausted, resp.ErrorKind)
	require.Contains(t, resp.Error, "connection refused")
}

func TestNoGeneratorWithoutSQL(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), Question: "anything"})
	require.Equal(t, KindGenerationExhausted, resp.ErrorKind)
	require.ErrorIs(t, resp.Err, generator.ErrNoBackends)
}

func TestInvalidQueryKeepsText(t *testing.T) {
	resp := New(&fixedGenerator{text: "SELECT * FROM data_table; DROP TABLE data_table"}, nil).
		Run(context.Background(), Request{Dataset: prices(t), Question: "drop it"})
	require.Equal(t, KindInvalidQuery, resp.ErrorKind)
	require.NotEmpty(t, resp.SQLQuery)
	require.Nil(t, resp.Result)
}

func TestExecutionErrorMessage(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT nope FROM data_table"})
	require.Equal(t, KindExecution, resp.ErrorKind)
	require.True(t, strings.HasPrefix(resp.Error, "Error executing SQL query: "), resp.Error)
	require.Contains(t, resp.Error, "nope")
	require.Equal(t, "SELECT nope FROM data_table;", resp.SQLQuery)
}

func TestPanicIsContained(t *testing.T) {
	resp := New(panicGenerator{}, nil).Run(context.Background(), Request{Dataset: prices(t), Question: "boom"})
	require.Equal(t, KindInternal, resp.ErrorKind)
	require.Contains(t, resp.Error, "backend exploded")
}

func TestBadRequests(t *testing.T) {
	p := New(&fixedGenerator{text: "SELECT 1 FROM data_table"}, nil)
	require.Equal(t, KindBadRequest, p.Run(context.Background(), Request{Question: "x"}).ErrorKind)
	require.Equal(t, KindBadRequest, p.Run(context.Background(), Request{Dataset: prices(t)}).ErrorKind)
}

func TestSuccessJSONShape(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT brand, price FROM data_table"})
	require.True(t, resp.OK(), resp.Error)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sql_query", "result", "columns", "summary", "chart"}, jsonKeys(t, b))

	var decoded struct {
		Result []map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "Acme", decoded.Result[0]["brand"])
	require.Equal(t, 10.5, decoded.Result[0]["price"])
}

func TestInfiniteCellsStillEncode(t *testing.T) {
	ds := load(t, "x,y\n1,a\ninf,b\n3,a\n-inf,a\n")
	for _, sql := range []string{
		"SELECT x FROM data_table",
		"SELECT y, x FROM data_table",
		"SELECT x, x * 2 AS x2 FROM data_table",
	} {
		resp := New(nil, nil).Run(context.Background(), Request{Dataset: ds, SQL: sql})
		require.True(t, resp.OK(), resp.Error)
		require.Equal(t, 2, resp.Summary["x"].Count, sql)
		b, err := json.Marshal(resp)
		require.NoErrorf(t, err, "query %q", sql)
		require.Contains(t, string(b), `"result"`)
	}
}

func TestThreeColumnsHaveNoChart(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT brand, price, price * 2 FROM data_table"})
	require.True(t, resp.OK(), resp.Error)
	require.Nil(t, resp.Chart)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	require.NotContains(t, jsonKeys(t, b), "chart")
}

type stageRecorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *stageRecorder) IncCounter(name string, _ float64, l metrics.Labels) {
	if name != metrics.StageTotal {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, l["stage"]+":"+l["status"])
}

func (r *stageRecorder) ObserveHistogram(string, float64, metrics.Labels) {}

func TestStagesAreRecorded(t *testing.T) {
	rec := &stageRecorder{}
	metrics.SetBackend(rec)
	defer metrics.SetBackend(nil)

	New(&fixedGenerator{text: "SELECT brand FROM data_table"}, nil).
		Run(context.Background(), Request{Dataset: prices(t), Question: "brands"})
	require.Equal(t, []string{"generate:ok", "repair:ok", "execute:ok", "analyze:ok"}, rec.stages)
}

func TestMarkdown(t *testing.T) {
	resp := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT brand, price FROM data_table ORDER BY price DESC"})
	out := resp.Markdown()
	require.Contains(t, out, "[SQL]\nSELECT brand, price FROM data_table ORDER BY price DESC;")
	require.Contains(t, out, "[RESULT] 5 row(s)")
	require.Contains(t, out, "| brand | price |")
	require.Contains(t, out, "| Globex | 30.25 |")
	require.Contains(t, out, "- price: mean=")
	require.Contains(t, out, "[CHART]\nboxplot: price by brand")

	empty := New(nil, nil).Run(context.Background(), Request{Dataset: prices(t), SQL: "SELECT brand FROM data_table WHERE price < 0"})
	require.Contains(t, empty.Markdown(), "[ERROR]\n"+EmptyResultMessage)
}

func jsonKeys(t *testing.T, b []byte) []string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
