package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/contractd/contractd/pkg/engine"
)

// fakeEngine is a test double for engine.Engine. It resolves servers and
// models against fixed lists the way a real engine would.
type fakeEngine struct {
	mu sync.Mutex

	servers []string
	models  []string

	openErr    error
	testErr    error
	lintResult *engine.LintResult
	lintErr    error
	exportText string
	exportErr  error
	panicMsg   string
	hold       *holdTest

	opens   []openCall
	exports []engine.ExportOptions
}

// holdTest makes Test block until release is closed and records the
// state of the context it was given at that point.
type holdTest struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func newHoldTest() *holdTest {
	return &holdTest{started: make(chan struct{}), release: make(chan struct{})}
}

type openCall struct {
	document string
	opts     engine.OpenOptions
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		servers:    []string{"production"},
		models:     []string{"orders", "line_items"},
		exportText: "CREATE TABLE orders (\n  order_id text not null\n);\n",
		lintResult: &engine.LintResult{
			Result: engine.ResultWarning,
			Checks: []engine.Check{
				{Type: "lint", Name: "Data contract is syntactically valid", Result: engine.ResultPassed},
				{Type: "lint", Name: "Linter 'Field pattern is correct regex'", Result: engine.ResultWarning, Reason: "bad pattern"},
			},
		},
	}
}

func (f *fakeEngine) Formats() []engine.ExportFormat {
	return []engine.ExportFormat{"jsonschema", "sql", "rdf", "avro"}
}

func (f *fakeEngine) Open(_ context.Context, document string, opts engine.OpenOptions) (engine.Session, error) {
	f.mu.Lock()
	f.opens = append(f.opens, openCall{document: document, opts: opts})
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeSession{engine: f, server: opts.Server}, nil
}

func (f *fakeEngine) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opens)
}

func (f *fakeEngine) lastOpen() openCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[len(f.opens)-1]
}

func (f *fakeEngine) resolveServer(name string) (string, error) {
	if name == "" {
		switch len(f.servers) {
		case 1:
			return f.servers[0], nil
		case 0:
			return "", engine.Errorf(engine.KindInvalidArgument, "no servers defined in the data contract")
		default:
			return "", engine.Errorf(engine.KindInvalidArgument, "multiple servers defined, select one with server=")
		}
	}
	if !slices.Contains(f.servers, name) {
		return "", engine.Errorf(engine.KindNotFound, "server '%s' not found", name)
	}
	return name, nil
}

type fakeSession struct {
	engine *fakeEngine
	server string
}

func (s *fakeSession) Test(ctx context.Context) (*engine.RunResult, error) {
	if h := s.engine.hold; h != nil {
		close(h.started)
		select {
		case <-h.release:
			h.ctxErr = ctx.Err()
		case <-ctx.Done():
			h.ctxErr = ctx.Err()
			return nil, ctx.Err()
		}
	}
	if s.engine.testErr != nil {
		return nil, s.engine.testErr
	}
	server, err := s.engine.resolveServer(s.server)
	if err != nil {
		return nil, err
	}
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	r := &engine.RunResult{
		RunID:               "8a1d7f64-5a36-4b6f-9a4d-3c1f2b0e9d11",
		DataContractID:      "orders-latest",
		DataContractVersion: "2.0.0",
		Server:              server,
		TimestampStart:      &start,
		TimestampEnd:        &end,
		Checks: []engine.Check{
			{Type: "field_is_present", Model: "orders", Field: "order_id", Result: engine.ResultPassed},
		},
	}
	r.Finish()
	return r, nil
}

func (s *fakeSession) Lint(context.Context) (*engine.LintResult, error) {
	if s.engine.lintErr != nil {
		return nil, s.engine.lintErr
	}
	return s.engine.lintResult, nil
}

func (s *fakeSession) Export(_ context.Context, opts engine.ExportOptions) (string, error) {
	s.engine.mu.Lock()
	s.engine.exports = append(s.engine.exports, opts)
	s.engine.mu.Unlock()

	if s.engine.exportErr != nil {
		return "", s.engine.exportErr
	}
	if opts.Model != engine.ModelAll && !slices.Contains(s.engine.models, opts.Model) {
		return "", engine.Errorf(engine.KindNotFound, "model '%s' not found in the data contract", opts.Model)
	}
	return s.engine.exportText, nil
}
