package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractd/contractd/pkg/config"
	"github.com/contractd/contractd/pkg/logging"
)

const ordersContract = `dataContractSpecification: 1.1.0
id: orders
info:
  title: Orders
  version: 1.0.0
servers:
  production:
    type: postgres
    host: db.internal
    port: 5432
    database: shop
    schema: public
models:
  orders:
    description: One row per order.
    fields:
      order_id: {type: text, required: true, primaryKey: true}
      order_total: {type: long}
`

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		jsonOutput = false
		configFile = ""
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "contractd "), out)
	assert.Contains(t, out, runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var v VersionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.NotEmpty(t, v.Version)
	assert.Equal(t, runtime.Version(), v.Go)
	assert.Equal(t, runtime.GOOS, v.OS)
}

func TestDisplayVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", displayVersion("1.2.0"))
	assert.Equal(t, "v1.2.0", displayVersion("v1.2.0"))
	assert.Equal(t, "dev", displayVersion("dev"))
	assert.Equal(t, "(devel)", displayVersion("(devel)"))
}

func TestFormatsCommand(t *testing.T) {
	out, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^FORMAT\s+MODELS$`, out)
	assert.Regexp(t, `(?m)^sql-query\s+one$`, out)
	assert.Regexp(t, `(?m)^markdown\s+all$`, out)
	assert.Contains(t, out, "SQL dialects: bigquery, databricks, duckdb")
}

func TestFormatsCommand_JSON(t *testing.T) {
	out, err := execute(t, "formats", "--json")
	require.NoError(t, err)

	var f FormatsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &f))
	require.Len(t, f.Formats, 9)
	assert.Equal(t, FormatInfo{Name: "jsonschema", SingleModel: true}, f.Formats[0])
	assert.Equal(t, FormatInfo{Name: "sql", SingleModel: false}, f.Formats[1])
	assert.Contains(t, f.Dialects, "postgres")
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	_, err := execute(t, "orders.yaml")
	require.Error(t, err)
}

func post(t *testing.T, h http.Handler, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_WiresEngineAndOptions(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "secret"
	cfg.RateLimit.Enabled = true

	srv, err := newServer(cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	h := srv.Handler()

	rec := post(t, h, "/export?format=sql", ordersContract, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "CREATE TABLE")

	rec = post(t, h, "/lint", ordersContract, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lint map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lint))
	assert.Len(t, lint, 2)
	assert.Contains(t, lint, "result")
	assert.Contains(t, lint, "checks")

	rec = post(t, h, "/test", ordersContract, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, "/test", ordersContract, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	srv, err := newServer(cfg, logging.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func serveFlagsCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Cleanup(func() { configFile = "" })

	cmd := &cobra.Command{Use: "serve"}
	registerServeFlags(cmd)
	for name, value := range flags {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
	return cmd
}

func TestRunServe_StopsWhenContextDone(t *testing.T) {
	cmd := serveFlagsCmd(t, map[string]string{
		"addr":       "127.0.0.1:0",
		"log-format": "json",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var logs bytes.Buffer
	require.NoError(t, runServe(ctx, cmd.Flags(), &logs))
	assert.Contains(t, logs.String(), `"msg":"starting contract API"`)
	assert.Contains(t, logs.String(), `"msg":"shutting down"`)
	assert.Contains(t, logs.String(), `"msg":"stopped"`)
}

func TestRunServe_ConfigErrors(t *testing.T) {
	t.Run("invalid log level", func(t *testing.T) {
		cmd := serveFlagsCmd(t, map[string]string{"addr": "127.0.0.1:0", "log-level": "loud"})
		err := runServe(context.Background(), cmd.Flags(), &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		cmd := serveFlagsCmd(t, nil)
		require.NoError(t, cmd.Flags().Set("config", "missing.yaml"))
		err := runServe(context.Background(), cmd.Flags(), &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("non-positive body limit", func(t *testing.T) {
		cmd := serveFlagsCmd(t, map[string]string{"max-body-bytes": "0"})
		err := runServe(context.Background(), cmd.Flags(), &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("address in use", func(t *testing.T) {
		blocker := httptest.NewServer(http.NotFoundHandler())
		defer blocker.Close()
		addr := strings.TrimPrefix(blocker.URL, "http://")

		cmd := serveFlagsCmd(t, map[string]string{"addr": addr})
		err := runServe(context.Background(), cmd.Flags(), &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start server")
	})
}

func TestRunServe_ReadsConfigFile(t *testing.T) {
	cmd := serveFlagsCmd(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(".", "contractd.yaml"), []byte(`
server:
  addr: 127.0.0.1:0
log:
  format: json
  level: debug
`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var logs bytes.Buffer
	require.NoError(t, runServe(ctx, cmd.Flags(), &logs))
	assert.Contains(t, logs.String(), `"level":"INFO"`)
	assert.Contains(t, logs.String(), `"addr":"127.0.0.1:`)
}
