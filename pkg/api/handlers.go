package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/contractd/contractd/pkg/engine"
	"github.com/contractd/contractd/pkg/httputil"
)

// errNoResult reports an engine that returned neither a result nor an error.
var errNoResult = errors.New("engine returned no result")

// Engine operation names used in logs and metrics.
const (
	opTest   = "test"
	opLint   = "lint"
	opExport = "export"
)

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	p, ok := s.bindTest(w, r)
	if !ok {
		return
	}

	var result *engine.RunResult
	err := s.callEngine(r.Context(), opTest, p.Document, engine.OpenOptions{Server: p.Server},
		func(ctx context.Context, sess engine.Session) error {
			var err error
			result, err = sess.Test(ctx)
			if err == nil && result == nil {
				err = errNoResult
			}
			return err
		})
	if err != nil {
		s.writeEngineError(w, r, opTest, err)
		return
	}

	httputil.WriteOK(w, result)
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	p, ok := s.bindLint(w, r)
	if !ok {
		return
	}

	var result *engine.LintResult
	err := s.callEngine(r.Context(), opLint, p.Document, engine.OpenOptions{SchemaLocation: p.Schema},
		func(ctx context.Context, sess engine.Session) error {
			var err error
			result, err = sess.Lint(ctx)
			if err == nil && result == nil {
				err = errNoResult
			}
			return err
		})
	if err != nil {
		s.writeEngineError(w, r, opLint, err)
		return
	}

	checks := result.Checks
	if checks == nil {
		checks = []engine.Check{}
	}
	httputil.WriteOK(w, engine.LintResult{Result: result.Result, Checks: checks})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.bindExport(w, r)
	if !ok {
		return
	}

	var text string
	err := s.callEngine(r.Context(), opExport, p.Document, engine.OpenOptions{Server: p.Server},
		func(ctx context.Context, sess engine.Session) error {
			var err error
			text, err = sess.Export(ctx, engine.ExportOptions{
				Format:        p.Format,
				Model:         p.Model,
				RDFBase:       p.RDFBase,
				SQLServerType: p.SQLServerType,
			})
			return err
		})
	if err != nil {
		s.writeEngineError(w, r, opExport, err)
		return
	}

	httputil.WriteText(w, http.StatusOK, text)
}

// callEngine opens a session for document and runs fn on it, recording one
// engine call. The engine keeps running when the client disconnects; only
// its own timeouts stop it.
func (s *Server) callEngine(ctx context.Context, op, document string, opts engine.OpenOptions,
	fn func(context.Context, engine.Session) error) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	err := func() error {
		sess, err := s.engine.Open(ctx, document, opts)
		if err != nil {
			return err
		}
		return fn(ctx, sess)
	}()

	elapsed := time.Since(start)
	s.metrics.ObserveEngineCall(op, engineOutcome(err), elapsed)
	s.log.DebugContext(ctx, "engine call finished", "operation", op, "duration", elapsed, "error", err)
	return err
}
