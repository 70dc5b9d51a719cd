package datacontract

import (
	"context"
	"encoding/json"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/contractd/contractd/pkg/engine"
)

func export(t *testing.T, doc string, open engine.OpenOptions, opts engine.ExportOptions) (string, error) {
	t.Helper()
	ctx := context.Background()
	s, err := newTestEngine().Open(ctx, doc, open)
	require.NoError(t, err)
	return s.Export(ctx, opts)
}

func mustExport(t *testing.T, doc string, opts engine.ExportOptions) string {
	t.Helper()
	out, err := export(t, doc, engine.OpenOptions{}, opts)
	require.NoError(t, err)
	return out
}

func TestExport_SQLInfersDialectFromServer(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatSQL})
	assert.Equal(t, `-- Data Contract: urn:datacontract:checkout:orders-latest
-- SQL Dialect: sqlite
CREATE TABLE "orders" (
  "order_id" TEXT not null primary key,
  "order_timestamp" TEXT not null,
  "order_total" INTEGER not null,
  "customer_email_address" TEXT not null,
  "status" TEXT
);
`, out)
}

func TestExport_SQLExplicitDialect(t *testing.T) {
	doc := readTestdata(t, "orders.yaml")

	out := mustExport(t, doc, engine.ExportOptions{Format: FormatSQL, SQLServerType: "postgres"})
	assert.Equal(t, `-- Data Contract: urn:datacontract:checkout:orders-latest
-- SQL Dialect: postgres
CREATE TABLE "orders" (
  "order_id" varchar(36) not null primary key,
  "order_timestamp" timestamptz not null,
  "order_total" bigint not null,
  "customer_email_address" text not null,
  "status" text
);
`, out)

	out = mustExport(t, doc, engine.ExportOptions{Format: FormatSQL, SQLServerType: "snowflake"})
	assert.Contains(t, out, "CREATE TABLE orders (\n")
	assert.Contains(t, out, "  order_id VARCHAR(36) not null primary key COMMENT 'An internal ID that identifies an order in the online shop.',\n")
	assert.Contains(t, out, "  order_timestamp TIMESTAMP_TZ not null COMMENT")

	out = mustExport(t, doc, engine.ExportOptions{Format: FormatSQL, SQLServerType: "sqlserver"})
	assert.Contains(t, out, "CREATE TABLE [orders] (\n")
	assert.Contains(t, out, "  [order_timestamp] datetimeoffset not null,\n")

	_, err := export(t, doc, engine.OpenOptions{}, engine.ExportOptions{Format: FormatSQL, SQLServerType: "oracle"})
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindUnsupported))
	assert.Contains(t, err.Error(), "sql server type 'oracle' is not supported")
}

const twoServers = `dataContractSpecification: 1.1.0
id: events
info: {title: Events, version: 1.0.0}
servers:
  lake: {type: s3, location: 's3://bucket/{model}/*.parquet', format: parquet}
  warehouse: {type: bigquery, project: acme, dataset: events}
models:
  clicks:
    primaryKey: [session_id, ts]
    fields:
      session_id: {type: string, required: true}
      ts: {type: timestamp, required: true}
      tags: {type: array, items: {type: string}}
  views:
    type: view
    fields:
      page: {type: string}
`

func TestExport_SQLDialectResolution(t *testing.T) {
	_, err := export(t, twoServers, engine.OpenOptions{}, engine.ExportOptions{Format: FormatSQL})
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindInvalidArgument))
	assert.Contains(t, err.Error(), "servers use different types (duckdb, bigquery)")

	out, err := export(t, twoServers, engine.OpenOptions{Server: "warehouse"}, engine.ExportOptions{Format: FormatSQL})
	require.NoError(t, err)
	assert.Contains(t, out, "-- SQL Dialect: bigquery\n")
	assert.Contains(t, out, "CREATE TABLE `clicks` (\n")
	assert.Contains(t, out, "  `tags` ARRAY<STRING>,\n")
	assert.Contains(t, out, "  primary key (`session_id`, `ts`)\n);\n")
	assert.Contains(t, out, "CREATE TABLE `views` (\n  `page` STRING\n);\n")

	out, err = export(t, twoServers, engine.OpenOptions{Server: "lake"}, engine.ExportOptions{Format: FormatSQL})
	require.NoError(t, err)
	assert.Contains(t, out, "-- SQL Dialect: duckdb\n")
	assert.Contains(t, out, `  "tags" VARCHAR[],`)

	noServers := "id: x\nmodels:\n  m:\n    fields:\n      a: {type: string}\n"
	_, err = export(t, noServers, engine.OpenOptions{}, engine.ExportOptions{Format: FormatSQL})
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindInvalidArgument))
	assert.Contains(t, err.Error(), "no servers defined")
}

func TestExport_SQLQuery(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatSQLQuery, Model: "orders"})
	assert.Equal(t, `-- Data Contract: urn:datacontract:checkout:orders-latest
-- SQL Dialect: sqlite
select
  "order_id",
  "order_timestamp",
  "order_total",
  "customer_email_address",
  "status"
from "orders"
`, out)
}

func TestExport_SingleModelFormats(t *testing.T) {
	for _, format := range []engine.ExportFormat{FormatJSONSchema, FormatAvro, FormatSQLQuery} {
		t.Run(string(format), func(t *testing.T) {
			_, err := export(t, twoServers, engine.OpenOptions{Server: "warehouse"}, engine.ExportOptions{Format: format})
			require.Error(t, err)
			assert.True(t, engine.IsKind(err, engine.KindInvalidArgument))
			assert.Contains(t, err.Error(), "select one with model=... (one of: clicks, views)")

			_, err = export(t, twoServers, engine.OpenOptions{Server: "warehouse"}, engine.ExportOptions{Format: format, Model: "clicks"})
			assert.NoError(t, err)
		})
	}
}

func TestExport_UnknownModelAndFormat(t *testing.T) {
	doc := readTestdata(t, "orders.yaml")

	_, err := export(t, doc, engine.OpenOptions{}, engine.ExportOptions{Format: FormatSQL, Model: "customers"})
	require.Error(t, err)
	e, ok := engine.AsError(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindNotFound, e.Kind)
	assert.Equal(t, "model 'customers' not found in the data contract", e.Message)

	_, err = export(t, doc, engine.OpenOptions{}, engine.ExportOptions{Format: "excel"})
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindUnsupported))
}

func TestExport_JSONSchema(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatJSONSchema, Model: "orders"})

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "http://json-schema.org/draft-07/schema#", schema["$schema"])
	assert.Equal(t, "orders", schema["title"])
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"order_id", "order_timestamp", "order_total", "customer_email_address"}, schema["required"])

	props := schema["properties"].(map[string]any)
	id := props["order_id"].(map[string]any)
	assert.Equal(t, "string", id["type"])
	assert.Equal(t, "uuid", id["format"])
	assert.Equal(t, 8.0, id["minLength"])

	ts := props["order_timestamp"].(map[string]any)
	assert.Equal(t, "date-time", ts["format"])

	status := props["status"].(map[string]any)
	assert.Equal(t, []any{"string", "null"}, status["type"])
	assert.Equal(t, []any{"placed", "shipped", "cancelled"}, status["enum"])

	// Properties keep document order.
	assert.Less(t, strings.Index(out, `"order_id"`), strings.Index(out, `"order_timestamp"`))
	assert.Less(t, strings.Index(out, `"customer_email_address"`), strings.Index(out, `"status"`))
}

func TestExport_Avro(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatAvro, Model: "orders"})

	var record struct {
		Type   string `json:"type"`
		Name   string `json:"name"`
		Doc    string `json:"doc"`
		Fields []struct {
			Name    string `json:"name"`
			Type    any    `json:"type"`
			Default any    `json:"default"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.Equal(t, "record", record.Type)
	assert.Equal(t, "orders", record.Name)
	require.Len(t, record.Fields, 5)

	assert.Equal(t, "string", record.Fields[0].Type)
	assert.Equal(t, map[string]any{"type": "long", "logicalType": "timestamp-millis"}, record.Fields[1].Type)
	assert.Equal(t, "long", record.Fields[2].Type)
	status, ok := record.Fields[4].Type.([]any)
	require.True(t, ok)
	require.Len(t, status, 2)
	assert.Equal(t, "null", status[0])
	assert.Equal(t, "enum", status[1].(map[string]any)["type"])
	assert.Equal(t, []any{"placed", "shipped", "cancelled"}, status[1].(map[string]any)["symbols"])
	assert.Contains(t, out, `"default": null`)
}

func TestExport_Protobuf(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatProtobuf})
	assert.Contains(t, out, "syntax = \"proto3\";\n")
	assert.Contains(t, out, "import \"google/protobuf/timestamp.proto\";\n")
	assert.Contains(t, out, "package urn_datacontract_checkout_orders_latest;\n")
	assert.Contains(t, out, "message Orders {\n")
	assert.Contains(t, out, "  string order_id = 1;\n")
	assert.Contains(t, out, "  google.protobuf.Timestamp order_timestamp = 2;\n")
	assert.Contains(t, out, "  int64 order_total = 3;\n")
	assert.Contains(t, out, "  optional string status = 5;\n")
}

func TestExport_DBT(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatDBT})

	var project dbtProject
	require.NoError(t, yaml.Unmarshal([]byte(out), &project))
	assert.Equal(t, 2, project.Version)
	require.Len(t, project.Models, 1)

	m := project.Models[0]
	assert.Equal(t, "orders", m.Name)
	assert.True(t, m.Config.Contract.Enforced)
	assert.Equal(t, "urn:datacontract:checkout:orders-latest", m.Config.Meta["data_contract"])
	require.Len(t, m.Columns, 5)
	assert.Equal(t, "TEXT", m.Columns[0].DataType)
	assert.Equal(t, []dbtConstraint{{Type: "not_null"}, {Type: "unique"}}, m.Columns[0].Constraints)
	assert.Equal(t, map[string]any{"pii": true, "classification": "restricted"}, m.Columns[0].Meta)
	assert.Contains(t, out, "accepted_values")

	// Mixed server types leave data types unset instead of failing.
	out = mustExport(t, twoServers, engine.ExportOptions{Format: FormatDBT})
	assert.NotContains(t, out, "data_type")
	assert.Contains(t, out, "enforced: false")
	assert.Contains(t, out, "materialized: view")
}

func TestExport_Go(t *testing.T) {
	out := mustExport(t, twoServers, engine.ExportOptions{Format: FormatGo})

	_, err := parser.ParseFile(token.NewFileSet(), "model.go", out, parser.AllErrors)
	require.NoError(t, err, out)
	assert.Contains(t, out, "package model\n")
	assert.Contains(t, out, "import \"time\"\n")
	assert.Regexp(t, "type Clicks struct \\{\n\\s+SessionId\\s+string\\s+`json:\"session_id\"`", out)
	assert.Regexp(t, "Ts\\s+time.Time\\s+`json:\"ts\"`", out)
	assert.Regexp(t, "Tags\\s+\\[\\]string\\s+`json:\"tags,omitempty\"`", out)
	assert.Regexp(t, "Page\\s+\\*string\\s+`json:\"page,omitempty\"`", out)
}

func TestExport_Markdown(t *testing.T) {
	out := mustExport(t, readTestdata(t, "orders.yaml"), engine.ExportOptions{Format: FormatMarkdown})
	assert.Contains(t, out, "# Orders Latest")
	assert.Contains(t, out, "P3M")
	assert.Contains(t, out, "| order_id |")
	assert.Contains(t, out, "production")
}

func TestExport_RDF(t *testing.T) {
	doc := readTestdata(t, "orders.yaml")

	out := mustExport(t, doc, engine.ExportOptions{Format: FormatRDF})
	assert.Contains(t, out, "@prefix dc1: <https://datacontract.com/DataContractSpecification/1.1.0/> .\n")
	assert.Contains(t, out, "@base <https://datacontract.com/> .\n")
	assert.Contains(t, out, "a dc1:DataContract")
	assert.Contains(t, out, "a dc1:Model")
	assert.Contains(t, out, `"Orders Latest"`)

	out = mustExport(t, doc, engine.ExportOptions{Format: FormatRDF, RDFBase: "https://example.com/contracts/"})
	assert.Contains(t, out, "@base <https://example.com/contracts/> .\n")
}

func TestExport_Deterministic(t *testing.T) {
	doc := readTestdata(t, "orders.yaml")
	e := newTestEngine()
	ctx := context.Background()
	for _, format := range e.Formats() {
		t.Run(string(format), func(t *testing.T) {
			s, err := e.Open(ctx, doc, engine.OpenOptions{})
			require.NoError(t, err)
			first, err := s.Export(ctx, engine.ExportOptions{Format: format, Model: "orders"})
			require.NoError(t, err)
			second, err := s.Export(ctx, engine.ExportOptions{Format: format, Model: "orders"})
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.NotEmpty(t, first)
		})
	}
}
