package datacontract

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Postgres driver, also used for Redshift

	"github.com/contractd/contractd/pkg/engine"
)

// openPostgres connects with DATACONTRACT_POSTGRES_USERNAME and
// DATACONTRACT_POSTGRES_PASSWORD. The server's schema becomes the search
// path so that queries can use bare table names.
func openPostgres(ctx context.Context, cfg SourceConfig) (Source, error) {
	return openLibPQ(ctx, cfg, "POSTGRES", 5432, "disable")
}

// openRedshift connects through the Postgres wire protocol with
// DATACONTRACT_REDSHIFT_USERNAME and DATACONTRACT_REDSHIFT_PASSWORD.
func openRedshift(ctx context.Context, cfg SourceConfig) (Source, error) {
	return openLibPQ(ctx, cfg, "REDSHIFT", 5439, "require")
}

func openLibPQ(ctx context.Context, cfg SourceConfig, envPrefix string, defaultPort int, defaultSSLMode string) (Source, error) {
	s := cfg.Server
	if err := requireProps(cfg, map[string]string{"host": s.Host, "database": s.Database}, "host", "database"); err != nil {
		return nil, err
	}
	port := s.Port
	if port == 0 {
		port = defaultPort
	}
	sslMode := cfg.env(envPrefix, "SSLMODE")
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		dsnQuote(s.Host), port, dsnQuote(s.Database),
		dsnQuote(cfg.env(envPrefix, "USERNAME")), dsnQuote(cfg.env(envPrefix, "PASSWORD")), sslMode)
	if s.Schema != "" {
		dsn += " search_path=" + dsnQuote(s.Schema)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, engine.Wrap(engine.KindInternal, err, "cannot configure %s connection", s.Type)
	}
	if err := connect(ctx, db, cfg); err != nil {
		return nil, err
	}

	d, _ := dialectForServer(s.Type)
	return newSQLSource(db, d), nil
}
