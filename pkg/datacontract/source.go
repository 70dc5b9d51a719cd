package datacontract

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/contractd/contractd/pkg/engine"
)

// Source is an open connection to the data a server describes.
type Source interface {
	// Dialect is the SQL dialect queries against the source are written in.
	Dialect() *Dialect

	// Columns returns the column types of the table backing a model, keyed
	// by lower-cased column name.
	Columns(ctx context.Context, model string) (map[string]string, error)

	// QueryNumber runs a query returning a single numeric value.
	QueryNumber(ctx context.Context, query string) (float64, error)

	Close() error
}

// SourceConfig is what a SourceOpener gets to connect with.
type SourceConfig struct {
	ServerName string
	Server     *Server
	Models     []string
	Getenv     func(string) string
}

// env returns DATACONTRACT_<PREFIX>_<KEY>.
func (c SourceConfig) env(prefix, key string) string {
	return c.Getenv("DATACONTRACT_" + prefix + "_" + key)
}

// SourceOpener connects to a server of one type.
type SourceOpener func(ctx context.Context, cfg SourceConfig) (Source, error)

func defaultSources() map[string]SourceOpener {
	return map[string]SourceOpener{
		"postgres":  openPostgres,
		"redshift":  openRedshift,
		"sqlite":    openSQLite,
		"duckdb":    openDuckDBFile,
		"local":     openDuckDBFiles,
		"s3":        openDuckDBFiles,
		"gcs":       openDuckDBFiles,
		"azure":     openDuckDBFiles,
		"snowflake": openSnowflake,
		"trino":     openTrino,
		"bigquery":  openBigQuery,
	}
}

// sqlSource is a Source over database/sql.
type sqlSource struct {
	db      *sql.DB
	dialect *Dialect
}

func newSQLSource(db *sql.DB, d *Dialect) *sqlSource {
	return &sqlSource{db: db, dialect: d}
}

// connect pings db and wraps failures as unavailable.
func connect(ctx context.Context, db *sql.DB, cfg SourceConfig) error {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return unavailable(err, cfg)
	}
	return nil
}

func unavailable(err error, cfg SourceConfig) error {
	return engine.Wrap(engine.KindUnavailable, err, "cannot connect to %s server '%s'", cfg.Server.Type, cfg.ServerName)
}

func (s *sqlSource) Dialect() *Dialect {
	return s.dialect
}

func (s *sqlSource) Columns(ctx context.Context, model string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.dialect.Quote(model)+" WHERE 1 = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make(map[string]string, len(types))
	for _, t := range types {
		cols[strings.ToLower(t.Name())] = t.DatabaseTypeName()
	}
	return cols, rows.Err()
}

func (s *sqlSource) QueryNumber(ctx context.Context, query string) (float64, error) {
	var v any
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	return toNumber(v)
}

func (s *sqlSource) Close() error {
	return s.db.Close()
}

// toNumber converts a scanned scalar to float64.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("query returned NULL")
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	case *big.Rat:
		f, _ := n.Float64()
		return f, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case time.Time:
		return 0, fmt.Errorf("query returned a timestamp, expected a number")
	case fmt.Stringer:
		return parseNumber(n.String())
	default:
		return 0, fmt.Errorf("query returned %T, expected a number", v)
	}
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("query returned %q, expected a number", s)
	}
	return f, nil
}

// dsnQuote quotes a libpq keyword/value connection string value.
func dsnQuote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

// requireProps reports the first empty server property among props.
func requireProps(cfg SourceConfig, props map[string]string, order ...string) error {
	for _, name := range order {
		if props[name] == "" {
			return engine.Errorf(engine.KindInvalidDocument, "server '%s' of type %s needs '%s'",
				cfg.ServerName, cfg.Server.Type, name)
		}
	}
	return nil
}
