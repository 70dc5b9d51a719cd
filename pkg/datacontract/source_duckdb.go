package datacontract

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/contractd/contractd/pkg/engine"
)

// openDuckDBFile opens a DuckDB database file read-only.
func openDuckDBFile(ctx context.Context, cfg SourceConfig) (Source, error) {
	path := cfg.Server.Path
	if path == "" {
		path = cfg.Server.Location
	}
	if err := requireProps(cfg, map[string]string{"path": path}, "path"); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, unavailable(err, cfg)
	}

	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, unavailable(err, cfg)
	}
	if err := connect(ctx, db, cfg); err != nil {
		return nil, err
	}
	return newSQLSource(db, dialects["duckdb"]), nil
}

// openDuckDBFiles reads local, S3, GCS or Azure files through an in-memory
// DuckDB, with one view per model over the server's location. A {model}
// placeholder in the location is replaced by the model name.
func openDuckDBFiles(ctx context.Context, cfg SourceConfig) (Source, error) {
	s := cfg.Server
	if err := requireProps(cfg, map[string]string{"location": s.Location, "format": s.Format}, "location", "format"); err != nil {
		return nil, err
	}
	d := dialects["duckdb"]

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, unavailable(err, cfg)
	}
	// Views and secrets live in the connection of an in-memory database.
	db.SetMaxOpenConns(1)

	setup, err := duckDBSecret(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, model := range cfg.Models {
		reader, err := duckDBReader(d, s, strings.ReplaceAll(s.Location, "{model}", model))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		setup = append(setup, fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", d.Quote(model), reader))
	}

	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, unavailable(err, cfg)
		}
	}
	return newSQLSource(db, d), nil
}

func duckDBReader(d *Dialect, s *Server, location string) (string, error) {
	path := d.Literal(location)
	switch strings.ToLower(s.Format) {
	case "json":
		return "read_json_auto(" + path + ")", nil
	case "csv":
		if s.Delimiter != "" {
			return "read_csv_auto(" + path + ", delim=" + d.Literal(s.Delimiter) + ", header=true)", nil
		}
		return "read_csv_auto(" + path + ", header=true)", nil
	case "parquet":
		return "read_parquet(" + path + ")", nil
	case "delta":
		return "delta_scan(" + path + ")", nil
	default:
		return "", engine.Errorf(engine.KindUnsupported, "format '%s' is not supported for %s servers", s.Format, s.Type)
	}
}

// duckDBSecret returns the statements that make remote storage readable.
func duckDBSecret(cfg SourceConfig) ([]string, error) {
	lit := dialects["duckdb"].Literal
	opt := func(name, value string) string {
		if value == "" {
			return ""
		}
		return ", " + name + " " + lit(value)
	}

	switch cfg.Server.Type {
	case "s3":
		secret := "CREATE SECRET s3_secret (TYPE S3" +
			opt("KEY_ID", cfg.env("S3", "ACCESS_KEY_ID")) +
			opt("SECRET", cfg.env("S3", "SECRET_ACCESS_KEY")) +
			opt("SESSION_TOKEN", cfg.env("S3", "SESSION_TOKEN")) +
			opt("REGION", cfg.env("S3", "REGION"))
		if endpoint := cfg.env("S3", "ENDPOINT_URL"); endpoint != "" {
			useSSL := !strings.HasPrefix(endpoint, "http://")
			host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
			secret += opt("ENDPOINT", host) + fmt.Sprintf(", USE_SSL %t, URL_STYLE 'path'", useSSL)
		}
		return []string{"INSTALL httpfs", "LOAD httpfs", secret + ")"}, nil
	case "gcs":
		secret := "CREATE SECRET gcs_secret (TYPE GCS" +
			opt("KEY_ID", cfg.env("GCS", "KEY_ID")) +
			opt("SECRET", cfg.env("GCS", "SECRET")) + ")"
		return []string{"INSTALL httpfs", "LOAD httpfs", secret}, nil
	case "azure":
		tenant, client, clientSecret := cfg.env("AZURE", "TENANT_ID"), cfg.env("AZURE", "CLIENT_ID"), cfg.env("AZURE", "CLIENT_SECRET")
		if tenant == "" || client == "" || clientSecret == "" {
			return nil, engine.Errorf(engine.KindInvalidArgument,
				"azure server '%s' needs DATACONTRACT_AZURE_TENANT_ID, DATACONTRACT_AZURE_CLIENT_ID and DATACONTRACT_AZURE_CLIENT_SECRET",
				cfg.ServerName)
		}
		secret := "CREATE SECRET azure_secret (TYPE AZURE, PROVIDER SERVICE_PRINCIPAL" +
			opt("TENANT_ID", tenant) + opt("CLIENT_ID", client) + opt("CLIENT_SECRET", clientSecret) +
			opt("ACCOUNT_NAME", azureAccount(cfg.Server.Location)) + ")"
		return []string{"INSTALL azure", "LOAD azure", secret}, nil
	default:
		return nil, nil
	}
}

// azureAccount extracts the storage account from an abfss:// or az:// URL.
func azureAccount(location string) string {
	rest, ok := strings.CutPrefix(location, "abfss://")
	if !ok {
		return ""
	}
	_, host, ok := strings.Cut(rest, "@")
	if !ok {
		return ""
	}
	account, _, _ := strings.Cut(host, ".")
	return account
}
