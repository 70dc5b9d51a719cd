// Mapping of engine failures to HTTP responses.

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/contractd/contractd/pkg/engine"
	"github.com/contractd/contractd/pkg/httputil"
)

// writeEngineError writes the response for a failed engine call. Engine
// errors keep their message and pick the status from their kind; anything
// else is logged and answered with a bare 500.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if e, ok := engine.AsError(err); ok {
		status := e.Kind.HTTPStatus()
		if status >= http.StatusInternalServerError {
			s.log.WarnContext(r.Context(), "engine operation failed", "operation", op, "kind", e.Kind, "error", err)
		} else {
			s.log.InfoContext(r.Context(), "engine rejected request", "operation", op, "kind", e.Kind, "detail", e.Message)
		}
		httputil.WriteDetailWithCode(w, status, string(e.Kind), e.Message)
		return
	}

	if errors.Is(err, context.Canceled) {
		s.log.InfoContext(r.Context(), "engine operation canceled", "operation", op)
	} else {
		s.log.ErrorContext(r.Context(), "engine operation failed", "operation", op, "error", err)
	}
	httputil.WriteInternalError(w)
}

// engineOutcome labels an engine call result for metrics.
func engineOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := engine.AsError(err); ok {
		return string(e.Kind)
	}
	return "error"
}
