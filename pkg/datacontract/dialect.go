package datacontract

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/contractd/contractd/pkg/engine"
)

// Dialect is a SQL flavour used for DDL export and for the queries the test
// runner issues.
type Dialect struct {
	Name string

	quoteOpen, quoteClose string
	bareIdents            bool // leave plain identifiers unquoted

	text         string
	varchar      string // printf pattern taking the max length
	timestampTZ  string
	timestampNTZ string
	date         string
	time         string
	decimal      string // printf pattern taking precision and scale
	decimalPlain string
	float        string
	double       string
	integer      string
	bigint       string
	boolean      string
	bytes        string
	object       string
	array        string // printf pattern taking the item type
	length       string
}

var dialects = map[string]*Dialect{
	"postgres": {
		Name: "postgres", quoteOpen: `"`, quoteClose: `"`,
		text: "text", varchar: "varchar(%d)", timestampTZ: "timestamptz", timestampNTZ: "timestamp",
		date: "date", time: "time", decimal: "numeric(%d,%d)", decimalPlain: "numeric",
		float: "real", double: "double precision", integer: "integer", bigint: "bigint",
		boolean: "boolean", bytes: "bytea", object: "jsonb", array: "%s[]", length: "length",
	},
	"redshift": {
		Name: "redshift", quoteOpen: `"`, quoteClose: `"`,
		text: "varchar(65535)", varchar: "varchar(%d)", timestampTZ: "timestamptz", timestampNTZ: "timestamp",
		date: "date", time: "time", decimal: "decimal(%d,%d)", decimalPlain: "decimal",
		float: "real", double: "double precision", integer: "integer", bigint: "bigint",
		boolean: "boolean", bytes: "varbyte", object: "super", array: "super", length: "len",
	},
	"snowflake": {
		Name: "snowflake", quoteOpen: `"`, quoteClose: `"`, bareIdents: true,
		text: "STRING", varchar: "VARCHAR(%d)", timestampTZ: "TIMESTAMP_TZ", timestampNTZ: "TIMESTAMP_NTZ",
		date: "DATE", time: "TIME", decimal: "NUMBER(%d,%d)", decimalPlain: "NUMBER",
		float: "FLOAT", double: "FLOAT", integer: "INT", bigint: "BIGINT",
		boolean: "BOOLEAN", bytes: "BINARY", object: "OBJECT", array: "ARRAY", length: "length",
	},
	"databricks": {
		Name: "databricks", quoteOpen: "`", quoteClose: "`",
		text: "STRING", varchar: "VARCHAR(%d)", timestampTZ: "TIMESTAMP", timestampNTZ: "TIMESTAMP_NTZ",
		date: "DATE", time: "STRING", decimal: "DECIMAL(%d,%d)", decimalPlain: "DECIMAL",
		float: "FLOAT", double: "DOUBLE", integer: "INT", bigint: "BIGINT",
		boolean: "BOOLEAN", bytes: "BINARY", object: "STRUCT", array: "ARRAY<%s>", length: "length",
	},
	"sqlserver": {
		Name: "sqlserver", quoteOpen: "[", quoteClose: "]",
		text: "varchar(max)", varchar: "varchar(%d)", timestampTZ: "datetimeoffset", timestampNTZ: "datetime2",
		date: "date", time: "time", decimal: "numeric(%d,%d)", decimalPlain: "numeric",
		float: "real", double: "float", integer: "int", bigint: "bigint",
		boolean: "bit", bytes: "varbinary(max)", object: "nvarchar(max)", array: "nvarchar(max)", length: "len",
	},
	"bigquery": {
		Name: "bigquery", quoteOpen: "`", quoteClose: "`",
		text: "STRING", varchar: "STRING(%d)", timestampTZ: "TIMESTAMP", timestampNTZ: "DATETIME",
		date: "DATE", time: "TIME", decimal: "NUMERIC(%d,%d)", decimalPlain: "NUMERIC",
		float: "FLOAT64", double: "FLOAT64", integer: "INT64", bigint: "INT64",
		boolean: "BOOL", bytes: "BYTES", object: "JSON", array: "ARRAY<%s>", length: "LENGTH",
	},
	"duckdb": {
		Name: "duckdb", quoteOpen: `"`, quoteClose: `"`,
		text: "VARCHAR", varchar: "VARCHAR(%d)", timestampTZ: "TIMESTAMP WITH TIME ZONE", timestampNTZ: "TIMESTAMP",
		date: "DATE", time: "TIME", decimal: "DECIMAL(%d,%d)", decimalPlain: "DECIMAL",
		float: "FLOAT", double: "DOUBLE", integer: "INTEGER", bigint: "BIGINT",
		boolean: "BOOLEAN", bytes: "BLOB", object: "JSON", array: "%s[]", length: "length",
	},
	"trino": {
		Name: "trino", quoteOpen: `"`, quoteClose: `"`,
		text: "varchar", varchar: "varchar(%d)", timestampTZ: "timestamp(3) with time zone", timestampNTZ: "timestamp(3)",
		date: "date", time: "time", decimal: "decimal(%d,%d)", decimalPlain: "decimal",
		float: "real", double: "double", integer: "integer", bigint: "bigint",
		boolean: "boolean", bytes: "varbinary", object: "json", array: "array(%s)", length: "length",
	},
	"sqlite": {
		Name: "sqlite", quoteOpen: `"`, quoteClose: `"`,
		text: "TEXT", varchar: "TEXT", timestampTZ: "TEXT", timestampNTZ: "TEXT",
		date: "TEXT", time: "TEXT", decimal: "NUMERIC", decimalPlain: "NUMERIC",
		float: "REAL", double: "REAL", integer: "INTEGER", bigint: "INTEGER",
		boolean: "INTEGER", bytes: "BLOB", object: "TEXT", array: "TEXT", length: "length",
	},
}

// serverDialects maps server types to the dialect their data is queried
// with. File servers are read through DuckDB.
var serverDialects = map[string]string{
	"postgres":   "postgres",
	"redshift":   "redshift",
	"snowflake":  "snowflake",
	"databricks": "databricks",
	"sqlserver":  "sqlserver",
	"bigquery":   "bigquery",
	"duckdb":     "duckdb",
	"local":      "duckdb",
	"s3":         "duckdb",
	"gcs":        "duckdb",
	"azure":      "duckdb",
	"trino":      "trino",
	"sqlite":     "sqlite",
}

// DialectNames lists the supported SQL dialects.
func DialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupDialect returns the dialect named name.
func LookupDialect(name string) (*Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, engine.Errorf(engine.KindUnsupported, "sql server type '%s' is not supported, use one of: %s",
			name, strings.Join(DialectNames(), ", "))
	}
	return d, nil
}

// dialectForServer returns the dialect of a server type.
func dialectForServer(serverType string) (*Dialect, bool) {
	name, ok := serverDialects[strings.ToLower(serverType)]
	if !ok {
		return nil, false
	}
	return dialects[name], true
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Quote quotes an identifier. Dialects that fold unquoted identifiers
// case-insensitively keep plain identifiers bare.
func (d *Dialect) Quote(ident string) string {
	if d.bareIdents && plainIdent.MatchString(ident) {
		return ident
	}
	if d.quoteClose == "]" {
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	}
	return d.quoteOpen + strings.ReplaceAll(ident, d.quoteClose, d.quoteClose+d.quoteClose) + d.quoteClose
}

// Literal renders s as a SQL string literal.
func (d *Dialect) Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Length returns the SQL expression for the character length of expr.
func (d *Dialect) Length(expr string) string {
	return d.length + "(" + expr + ")"
}

// ColumnType returns the column type for f.
func (d *Dialect) ColumnType(f *Field) string {
	switch typeFamily(f.Type) {
	case familyString:
		if f.MaxLength != nil && d.varchar != d.text {
			return fmt.Sprintf(d.varchar, *f.MaxLength)
		}
		return d.text
	case familyTimestampTZ:
		return d.timestampTZ
	case familyTimestampNTZ:
		return d.timestampNTZ
	case familyDate:
		return d.date
	case familyTime:
		return d.time
	case familyDecimal:
		if f.Precision != nil && strings.Contains(d.decimal, "%d") {
			scale := 0
			if f.Scale != nil {
				scale = *f.Scale
			}
			return fmt.Sprintf(d.decimal, *f.Precision, scale)
		}
		return d.decimalPlain
	case familyFloat:
		return d.float
	case familyDouble:
		return d.double
	case familyInteger:
		return d.integer
	case familyLong:
		return d.bigint
	case familyBoolean:
		return d.boolean
	case familyBytes:
		return d.bytes
	case familyObject, familyMap:
		return d.object
	case familyArray:
		if !strings.Contains(d.array, "%s") {
			return d.array
		}
		item := d.text
		if f.Items != nil {
			item = d.ColumnType(f.Items)
		}
		return fmt.Sprintf(d.array, item)
	default:
		return d.text
	}
}
