package datacontract

import (
	"context"
	"database/sql"

	"github.com/snowflakedb/gosnowflake"

	"github.com/contractd/contractd/pkg/engine"
)

// openSnowflake connects with DATACONTRACT_SNOWFLAKE_USERNAME, _PASSWORD,
// _ROLE and _WAREHOUSE. The server's warehouse wins over the environment.
func openSnowflake(ctx context.Context, cfg SourceConfig) (Source, error) {
	s := cfg.Server
	props := map[string]string{"account": s.Account, "database": s.Database, "schema": s.Schema}
	if err := requireProps(cfg, props, "account", "database", "schema"); err != nil {
		return nil, err
	}
	warehouse := s.Warehouse
	if warehouse == "" {
		warehouse = cfg.env("SNOWFLAKE", "WAREHOUSE")
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   s.Account,
		User:      cfg.env("SNOWFLAKE", "USERNAME"),
		Password:  cfg.env("SNOWFLAKE", "PASSWORD"),
		Database:  s.Database,
		Schema:    s.Schema,
		Warehouse: warehouse,
		Role:      cfg.env("SNOWFLAKE", "ROLE"),
	})
	if err != nil {
		return nil, engine.Wrap(engine.KindInvalidArgument, err, "invalid snowflake connection settings for server '%s'", cfg.ServerName)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, engine.Wrap(engine.KindInternal, err, "cannot configure snowflake connection")
	}
	if err := connect(ctx, db, cfg); err != nil {
		return nil, err
	}
	return newSQLSource(db, dialects["snowflake"]), nil
}
