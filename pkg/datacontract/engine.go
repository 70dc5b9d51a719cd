package datacontract

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/contractd/contractd/pkg/engine"
	"github.com/contractd/contractd/pkg/logging"
)

// Export formats.
const (
	FormatJSONSchema engine.ExportFormat = "jsonschema"
	FormatSQL        engine.ExportFormat = "sql"
	FormatSQLQuery   engine.ExportFormat = "sql-query"
	FormatRDF        engine.ExportFormat = "rdf"
	FormatAvro       engine.ExportFormat = "avro"
	FormatProtobuf   engine.ExportFormat = "protobuf"
	FormatDBT        engine.ExportFormat = "dbt"
	FormatGo         engine.ExportFormat = "go"
	FormatMarkdown   engine.ExportFormat = "markdown"
)

// Default timeouts.
const (
	DefaultSchemaTimeout = 30 * time.Second
	DefaultQueryTimeout  = 5 * time.Minute
)

// Engine runs data contract operations in-process. It is safe for
// concurrent use; every Open returns an independent session.
type Engine struct {
	log           *slog.Logger
	httpClient    *http.Client
	getenv        func(string) string
	schemaTimeout time.Duration
	queryTimeout  time.Duration
	sources       map[string]SourceOpener
	now           func() time.Time
	newRunID      func() string
	schemas       *schemaCache
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithHTTPClient sets the client used to fetch remote lint schemas.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithEnv sets the environment lookup used for data source credentials.
func WithEnv(getenv func(string) string) Option {
	return func(e *Engine) {
		if getenv != nil {
			e.getenv = getenv
		}
	}
}

// WithSchemaTimeout bounds fetching a remote lint schema.
func WithSchemaTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.schemaTimeout = d
		}
	}
}

// WithQueryTimeout bounds each query issued while testing.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.queryTimeout = d
		}
	}
}

// WithSource registers or replaces the opener for a server type.
func WithSource(serverType string, open SourceOpener) Option {
	return func(e *Engine) {
		e.sources[serverType] = open
	}
}

// New creates an Engine with the built-in data sources.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:           logging.Nop(),
		httpClient:    http.DefaultClient,
		getenv:        os.Getenv,
		schemaTimeout: DefaultSchemaTimeout,
		queryTimeout:  DefaultQueryTimeout,
		sources:       defaultSources(),
		now:           time.Now,
		newRunID:      uuid.NewString,
		schemas:       newSchemaCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Formats implements engine.Engine.
func (e *Engine) Formats() []engine.ExportFormat {
	return []engine.ExportFormat{
		FormatJSONSchema,
		FormatSQL,
		FormatSQLQuery,
		FormatRDF,
		FormatAvro,
		FormatProtobuf,
		FormatDBT,
		FormatGo,
		FormatMarkdown,
	}
}

// Open implements engine.Engine. A named server must exist in the document.
func (e *Engine) Open(ctx context.Context, document string, opts engine.OpenOptions) (engine.Session, error) {
	c, err := Parse(document)
	if err != nil {
		return nil, err
	}
	if opts.Server != "" {
		if _, ok := c.Servers.Get(opts.Server); !ok {
			return nil, engine.Errorf(engine.KindNotFound, "server '%s' not found in the data contract", opts.Server)
		}
	}
	e.log.DebugContext(ctx, "data contract opened",
		"id", c.ID,
		"models", c.Models.Len(),
		"servers", c.Servers.Len())
	return &session{engine: e, contract: c, document: document, opts: opts}, nil
}

type session struct {
	engine   *Engine
	contract *Contract
	document string
	opts     engine.OpenOptions
}

// namedServer is a server together with its key in the document.
type namedServer struct {
	Name string
	*Server
}

// resolveServer picks the server a session operates on: the named one, or
// the only one the document defines.
func (s *session) resolveServer() (namedServer, error) {
	servers := s.contract.Servers
	if s.opts.Server != "" {
		srv, ok := servers.Get(s.opts.Server)
		if !ok {
			return namedServer{}, engine.Errorf(engine.KindNotFound, "server '%s' not found in the data contract", s.opts.Server)
		}
		return namedServer{Name: s.opts.Server, Server: srv}, nil
	}
	switch servers.Len() {
	case 0:
		return namedServer{}, engine.Errorf(engine.KindInvalidArgument, "no servers defined in the data contract")
	case 1:
		name := servers.Keys()[0]
		srv, _ := servers.Get(name)
		return namedServer{Name: name, Server: srv}, nil
	default:
		return namedServer{}, engine.Errorf(engine.KindInvalidArgument,
			"multiple servers defined in the data contract, select one with server=...")
	}
}
