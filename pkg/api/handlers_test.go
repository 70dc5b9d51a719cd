package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractd/contractd/pkg/engine"
	"github.com/contractd/contractd/pkg/metrics"
)

const orderContract = `dataContractSpecification: 1.1.0
id: orders-latest
info:
  title: Orders Latest
  version: 2.0.0
servers:
  production:
    type: s3
    location: s3://datacontract-example-orders-latest/v2/{model}/*.json
    format: json
models:
  orders:
    type: table
    fields:
      order_id:
        type: varchar
        required: true
`

func newTestServer(t *testing.T, eng engine.Engine, opts ...Option) *Server {
	t.Helper()
	srv, err := NewServer(eng, opts...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleTest_SingleServerDefault(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/test", orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, orderContract, eng.lastOpen().document, "document must reach the engine verbatim")
	assert.Empty(t, eng.lastOpen().opts.Server)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "passed", body["result"])
	assert.Equal(t, "production", body["server"])
	assert.Equal(t, "orders-latest", body["dataContractId"])
	assert.NotContains(t, body, "logs", "unset fields are omitted")
}

func TestHandleTest_ServerSelectorForwarded(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/test?server=production", orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "production", eng.lastOpen().opts.Server)
}

func TestHandleTest_MultipleServersWithoutSelector(t *testing.T) {
	eng := newFakeEngine()
	eng.servers = []string{"production", "staging"}
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/test", orderContract, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"multiple servers defined, select one with server=","error":"invalid_argument"}`, rec.Body.String())
}

func TestHandleTest_UnknownServer(t *testing.T) {
	srv := newTestServer(t, newFakeEngine())

	rec := do(t, srv, http.MethodPost, "/test?server=nope", orderContract, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestHandleTest_InvalidDocument(t *testing.T) {
	eng := newFakeEngine()
	eng.openErr = engine.Errorf(engine.KindInvalidDocument, "cannot parse data contract: yaml: line 1")
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/test", "::: not yaml", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"cannot parse data contract: yaml: line 1","error":"invalid_document"}`, rec.Body.String())
}

func TestHandleTest_UnavailableSource(t *testing.T) {
	eng := newFakeEngine()
	eng.testErr = engine.Wrap(engine.KindUnavailable, errors.New("dial tcp: refused"), "cannot connect to server 'production'")
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/test", orderContract, nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"detail":"cannot connect to server 'production'","error":"unavailable"}`, rec.Body.String())
}

func TestHandleTest_NonEngineErrorIsInternal(t *testing.T) {
	eng := newFakeEngine()
	eng.testErr = errors.New("secret connection string leaked")
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/test", orderContract, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestHandleTest_ClientDisconnectDoesNotCancelEngine(t *testing.T) {
	eng := newFakeEngine()
	eng.hold = newHoldTest()
	srv := newTestServer(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(orderContract)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Handler().ServeHTTP(rec, req)
	}()

	<-eng.hold.started
	cancel()
	close(eng.hold.release)
	<-done

	assert.NoError(t, eng.hold.ctxErr)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":"passed"`)
}

func TestHandleLint_NilResultIsInternal(t *testing.T) {
	eng := newFakeEngine()
	eng.lintResult = nil
	var logs bytes.Buffer
	srv := newTestServer(t, eng, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	rec := do(t, srv, http.MethodPost, "/lint", orderContract, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "engine returned no result")
	assert.NotContains(t, logs.String(), "panic")
}

func TestHandleLint_ExactShape(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/lint", orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
	assert.JSONEq(t, `"warning"`, string(body["result"]))

	var checks []engine.Check
	require.NoError(t, json.Unmarshal(body["checks"], &checks))
	assert.Equal(t, eng.lintResult.Checks, checks)
}

func TestHandleLint_EmptyChecksIsArray(t *testing.T) {
	eng := newFakeEngine()
	eng.lintResult = &engine.LintResult{Result: engine.ResultPassed}
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/lint", orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":"passed","checks":[]}`, rec.Body.String())
}

func TestHandleLint_SchemaLocationForwarded(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/lint?schema=https://example.com/schema.json", orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/schema.json", eng.lastOpen().opts.SchemaLocation)
}

func TestHandleLint_AnyContentType(t *testing.T) {
	srv := newTestServer(t, newFakeEngine())

	for _, ct := range []string{"application/json", "text/plain", "application/octet-stream", ""} {
		rec := do(t, srv, http.MethodPost, "/lint", orderContract, map[string]string{"Content-Type": ct})
		assert.Equal(t, http.StatusOK, rec.Code, "content type %q", ct)
	}
}

func TestHandleExport_TextVerbatimWithDefaults(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/export?format=sql", orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, eng.exportText, rec.Body.String())

	require.Len(t, eng.exports, 1)
	assert.Equal(t, engine.ExportOptions{
		Format:        "sql",
		Model:         engine.ModelAll,
		SQLServerType: engine.SQLServerTypeAuto,
	}, eng.exports[0])
}

func TestHandleExport_AllParametersForwarded(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost,
		"/export?format=rdf&server=production&model=orders&rdf_base=https://example.com/&sql_server_type=postgres",
		orderContract, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "production", eng.lastOpen().opts.Server)
	assert.Equal(t, engine.ExportOptions{
		Format:        "rdf",
		Model:         "orders",
		RDFBase:       "https://example.com/",
		SQLServerType: "postgres",
	}, eng.exports[0])
}

func TestHandleExport_UnknownModel(t *testing.T) {
	srv := newTestServer(t, newFakeEngine())

	rec := do(t, srv, http.MethodPost, "/export?format=sql&model=customers", orderContract, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"model 'customers' not found in the data contract","error":"not_found"}`, rec.Body.String())
}

func TestHandleExport_UnsupportedDialect(t *testing.T) {
	eng := newFakeEngine()
	eng.exportErr = engine.Errorf(engine.KindUnsupported, "sql server type 'oracle' is not supported")
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/export?format=sql&sql_server_type=oracle", orderContract, nil)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestIdenticalRequestsGiveIdenticalResponses(t *testing.T) {
	srv := newTestServer(t, newFakeEngine())

	for _, target := range []string{"/test", "/lint", "/export?format=avro"} {
		first := do(t, srv, http.MethodPost, target, orderContract, nil)
		second := do(t, srv, http.MethodPost, target, orderContract, nil)

		assert.Equal(t, first.Code, second.Code, target)
		assert.Equal(t, first.Body.String(), second.Body.String(), target)
	}
}

func TestEngineCalledOncePerRequest(t *testing.T) {
	eng := newFakeEngine()
	srv := newTestServer(t, eng)

	do(t, srv, http.MethodPost, "/test", orderContract, nil)
	do(t, srv, http.MethodPost, "/lint", orderContract, nil)
	do(t, srv, http.MethodPost, "/export?format=sql", orderContract, nil)

	assert.Equal(t, 3, eng.openCount())
}

func TestPanicBecomesInternalError(t *testing.T) {
	eng := newFakeEngine()
	eng.panicMsg = "boom"
	srv := newTestServer(t, eng)

	rec := do(t, srv, http.MethodPost, "/lint", orderContract, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(t, newFakeEngine(), WithMetrics(m), WithAPIKey("k1"))

	do(t, srv, http.MethodPost, "/lint", orderContract, nil)
	do(t, srv, http.MethodPost, "/test", orderContract, nil)

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `contractd_engine_calls_total{operation="lint",outcome="ok"} 1`)
	assert.Contains(t, body, `contractd_auth_decisions_total{decision="unauthenticated"} 1`)
	assert.Contains(t, body, `route="POST /test",status="401"`)
}
