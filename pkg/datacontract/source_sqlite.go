package datacontract

import (
	"context"
	"database/sql"
	"os"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/contractd/contractd/pkg/engine"
)

// openSQLite opens the database file at the server's path (or location)
// read-only.
func openSQLite(ctx context.Context, cfg SourceConfig) (Source, error) {
	path := cfg.Server.Path
	if path == "" {
		path = strings.TrimPrefix(cfg.Server.Location, "file://")
	}
	if err := requireProps(cfg, map[string]string{"path": path}, "path"); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, unavailable(err, cfg)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, engine.Wrap(engine.KindInternal, err, "cannot configure sqlite connection")
	}
	if err := connect(ctx, db, cfg); err != nil {
		return nil, err
	}
	return newSQLSource(db, dialects["sqlite"]), nil
}
