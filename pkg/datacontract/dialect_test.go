package datacontract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractd/contractd/pkg/engine"
)

func TestLookupDialect(t *testing.T) {
	d, err := LookupDialect("Postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name)

	_, err = LookupDialect("oracle")
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindUnsupported))
	assert.Contains(t, err.Error(), "use one of: bigquery, databricks, duckdb, postgres, redshift, snowflake, sqlite, sqlserver, trino")
}

func TestDialectQuote(t *testing.T) {
	tests := []struct {
		dialect string
		ident   string
		want    string
	}{
		{"postgres", "orders", `"orders"`},
		{"postgres", `we"ird`, `"we""ird"`},
		{"snowflake", "orders", "orders"},
		{"snowflake", "order items", `"order items"`},
		{"sqlserver", "orders", "[orders]"},
		{"sqlserver", "a]b", "[a]]b]"},
		{"bigquery", "orders", "`orders`"},
		{"databricks", "a`b", "`a``b`"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dialects[tt.dialect].Quote(tt.ident), "%s %s", tt.dialect, tt.ident)
	}
}

func TestDialectLiteralAndLength(t *testing.T) {
	d := dialects["redshift"]
	assert.Equal(t, `'O''Brien'`, d.Literal("O'Brien"))
	assert.Equal(t, `len("name")`, d.Length(`"name"`))
	assert.Equal(t, `length(x)`, dialects["duckdb"].Length("x"))
}

func intPtr(v int) *int { return &v }

func TestDialectColumnType(t *testing.T) {
	tests := []struct {
		dialect string
		field   Field
		want    string
	}{
		{"postgres", Field{Type: "string"}, "text"},
		{"postgres", Field{Type: "string", MaxLength: intPtr(20)}, "varchar(20)"},
		{"postgres", Field{Type: "decimal", Precision: intPtr(10), Scale: intPtr(2)}, "numeric(10,2)"},
		{"postgres", Field{Type: "decimal"}, "numeric"},
		{"postgres", Field{Type: "array", Items: &Field{Type: "integer"}}, "integer[]"},
		{"snowflake", Field{Type: "timestamp_ntz"}, "TIMESTAMP_NTZ"},
		{"snowflake", Field{Type: "array", Items: &Field{Type: "integer"}}, "ARRAY"},
		{"bigquery", Field{Type: "long"}, "INT64"},
		{"bigquery", Field{Type: "array"}, "ARRAY<STRING>"},
		{"databricks", Field{Type: "decimal", Precision: intPtr(5)}, "DECIMAL(5,0)"},
		{"sqlserver", Field{Type: "boolean"}, "bit"},
		{"sqlite", Field{Type: "string", MaxLength: intPtr(20)}, "TEXT"},
		{"sqlite", Field{Type: "decimal", Precision: intPtr(10)}, "NUMERIC"},
		{"trino", Field{Type: "timestamp"}, "timestamp(3) with time zone"},
		{"duckdb", Field{Type: "object"}, "JSON"},
		{"duckdb", Field{Type: "whatever"}, "VARCHAR"},
	}
	for _, tt := range tests {
		f := tt.field
		assert.Equal(t, tt.want, dialects[tt.dialect].ColumnType(&f), "%s %s", tt.dialect, tt.field.Type)
	}
}

func TestTypesCompatible(t *testing.T) {
	compatible := [][2]string{
		{"string", "VARCHAR"},
		{"text", "character varying"},
		{"integer", "INT4"},
		{"long", "BIGINT"},
		{"integer", "NUMBER(38,0)"},
		{"decimal", "NUMERIC(10,2)"},
		{"double", "FLOAT64"},
		{"timestamp", "TIMESTAMPTZ"},
		{"timestamp_ntz", "DATETIME"},
		{"boolean", "BOOL"},
		{"date", "DATE"},
		{"bytes", "BYTEA"},
		{"array", "INTEGER[]"},
		{"object", "JSONB"},
		{"uuid-ish", "TEXT"},
		{"string", "GEOGRAPHY"},
	}
	for _, pair := range compatible {
		assert.True(t, typesCompatible(pair[0], pair[1]), "%s vs %s", pair[0], pair[1])
	}

	incompatible := [][2]string{
		{"long", "TEXT"},
		{"string", "INTEGER"},
		{"decimal", "BOOLEAN"},
		{"timestamp", "DATE"},
		{"boolean", "VARCHAR"},
		{"object", "TEXT"},
	}
	for _, pair := range incompatible {
		assert.False(t, typesCompatible(pair[0], pair[1]), "%s vs %s", pair[0], pair[1])
	}
}
