package datacontract

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/trinodb/trino-go-client/trino"

	"github.com/contractd/contractd/pkg/engine"
)

// openTrino connects with DATACONTRACT_TRINO_USERNAME and
// DATACONTRACT_TRINO_PASSWORD. A password forces HTTPS.
func openTrino(ctx context.Context, cfg SourceConfig) (Source, error) {
	s := cfg.Server
	props := map[string]string{"host": s.Host, "catalog": s.Catalog, "schema": s.Schema}
	if err := requireProps(cfg, props, "host", "catalog", "schema"); err != nil {
		return nil, err
	}
	port := s.Port
	if port == 0 {
		port = 8080
	}

	user, password := cfg.env("TRINO", "USERNAME"), cfg.env("TRINO", "PASSWORD")
	if user == "" {
		user = "contractd"
	}
	server := &url.URL{Scheme: "http", User: url.User(user), Host: fmt.Sprintf("%s:%d", s.Host, port)}
	if password != "" {
		server.Scheme = "https"
		server.User = url.UserPassword(user, password)
	}

	tc := &trino.Config{
		ServerURI: server.String(),
		Source:    "contractd",
		Catalog:   s.Catalog,
		Schema:    s.Schema,
	}
	dsn, err := tc.FormatDSN()
	if err != nil {
		return nil, engine.Wrap(engine.KindInvalidArgument, err, "invalid trino connection settings for server '%s'", cfg.ServerName)
	}

	db, err := sql.Open("trino", dsn)
	if err != nil {
		return nil, engine.Wrap(engine.KindInternal, err, "cannot configure trino connection")
	}
	if err := connect(ctx, db, cfg); err != nil {
		return nil, err
	}
	return newSQLSource(db, dialects["trino"]), nil
}
