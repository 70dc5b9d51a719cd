package engine

import "context"

// Sentinel selector values understood by every engine.
const (
	// ModelAll selects every model of a contract.
	ModelAll = "all"

	// SQLServerTypeAuto lets the engine infer the SQL dialect from the
	// contract's servers.
	SQLServerTypeAuto = "auto"
)

// ExportFormat names a target format for Session.Export.
type ExportFormat string

// OpenOptions configures a Session.
type OpenOptions struct {
	// Server selects a server by name. Empty means the contract's only server.
	Server string

	// SchemaLocation is the http(s) URL of the JSON Schema used by Lint.
	// Empty means the engine's built-in schema.
	SchemaLocation string
}

// ExportOptions configures Session.Export.
type ExportOptions struct {
	Format        ExportFormat
	Model         string
	RDFBase       string
	SQLServerType string
}

// Engine opens sessions over contract documents.
type Engine interface {
	// Open parses the document and returns a session bound to it.
	Open(ctx context.Context, document string, opts OpenOptions) (Session, error)

	// Formats lists the supported export formats in a stable order.
	Formats() []ExportFormat
}

// Session runs one operation against an opened document.
type Session interface {
	Test(ctx context.Context) (*RunResult, error)
	Lint(ctx context.Context) (*LintResult, error)
	Export(ctx context.Context, opts ExportOptions) (string, error)
}
