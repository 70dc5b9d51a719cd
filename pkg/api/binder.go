package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/contractd/contractd/pkg/engine"
	"github.com/contractd/contractd/pkg/httputil"
	"github.com/contractd/contractd/pkg/validation"
)

// TestParams are the bound inputs of POST /test.
type TestParams struct {
	Document string
	Server   string
}

// LintParams are the bound inputs of POST /lint.
type LintParams struct {
	Document string
	Schema   string
}

// ExportParams are the bound inputs of POST /export.
type ExportParams struct {
	Document      string
	Format        engine.ExportFormat
	Server        string
	Model         string
	RDFBase       string
	SQLServerType string
}

func (s *Server) bindTest(w http.ResponseWriter, r *http.Request) (TestParams, bool) {
	doc, query, ok := s.bind(w, r)
	if !ok {
		return TestParams{}, false
	}
	return TestParams{
		Document: doc,
		Server:   query.Get(paramServer),
	}, true
}

func (s *Server) bindLint(w http.ResponseWriter, r *http.Request) (LintParams, bool) {
	doc, query, ok := s.bind(w, r)
	if !ok {
		return LintParams{}, false
	}
	return LintParams{
		Document: doc,
		Schema:   query.Get(paramSchema),
	}, true
}

func (s *Server) bindExport(w http.ResponseWriter, r *http.Request) (ExportParams, bool) {
	doc, query, ok := s.bind(w, r)
	if !ok {
		return ExportParams{}, false
	}
	return ExportParams{
		Document:      doc,
		Format:        engine.ExportFormat(query.Get(paramFormat)),
		Server:        query.Get(paramServer),
		Model:         valueOr(query.Get(paramModel), engine.ModelAll),
		RDFBase:       query.Get(paramRDFBase),
		SQLServerType: valueOr(query.Get(paramSQLServerType), engine.SQLServerTypeAuto),
	}, true
}

// bind reads the body and validates the request against the OpenAPI
// document. On failure it writes the response and returns false.
func (s *Server) bind(w http.ResponseWriter, r *http.Request) (string, url.Values, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.log.InfoContext(r.Context(), "request body too large", "limit", tooLarge.Limit)
			httputil.WriteDetail(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return "", nil, false
		}
		s.log.WarnContext(r.Context(), "failed to read request body", "error", err)
		s.writeValidationError(w, r, &validation.Result{Errors: []*validation.FieldError{{
			Loc:  []string{validation.LocationBody},
			Msg:  "failed to read request body",
			Type: validation.ErrTypeReadBody,
		}}})
		return "", nil, false
	}

	query, result := s.validator.Validate(r, body)
	if result.HasErrors() {
		s.writeValidationError(w, r, result)
		return "", nil, false
	}

	s.log.DebugContext(r.Context(), "request bound", "body_bytes", len(body), "query", query.Encode())
	return string(body), query, true
}

func (s *Server) writeValidationError(w http.ResponseWriter, r *http.Request, result *validation.Result) {
	s.metrics.ValidationFailure(r.URL.Path)
	s.log.InfoContext(r.Context(), "request validation failed", "path", r.URL.Path, "errors", len(result.Errors))
	httputil.WriteDetail(w, http.StatusUnprocessableEntity, result.Detail())
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
