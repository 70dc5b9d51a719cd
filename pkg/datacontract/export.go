package datacontract

import (
	"context"
	"slices"
	"strings"

	"github.com/contractd/contractd/pkg/engine"
)

// DefaultRDFBase is the base IRI of RDF exports when none is given.
const DefaultRDFBase = "https://datacontract.com/"

// namedModel is a model together with its key in the document.
type namedModel struct {
	Name string
	*Model
}

// exportRequest is what an exporter works from.
type exportRequest struct {
	contract *Contract
	models   []namedModel
	opts     engine.ExportOptions
	session  *session
}

type exporter func(req *exportRequest) (string, error)

var exporters = map[engine.ExportFormat]exporter{
	FormatJSONSchema: exportJSONSchema,
	FormatSQL:        exportSQL,
	FormatSQLQuery:   exportSQLQuery,
	FormatRDF:        exportRDF,
	FormatAvro:       exportAvro,
	FormatProtobuf:   exportProtobuf,
	FormatDBT:        exportDBT,
	FormatGo:         exportGo,
	FormatMarkdown:   exportMarkdown,
}

// singleModelFormats produce one schema and need exactly one model.
var singleModelFormats = []engine.ExportFormat{FormatJSONSchema, FormatAvro, FormatSQLQuery}

// NeedsSingleModel reports whether format renders exactly one model.
func NeedsSingleModel(format engine.ExportFormat) bool {
	return slices.Contains(singleModelFormats, format)
}

// Export implements engine.Session.
func (s *session) Export(ctx context.Context, opts engine.ExportOptions) (string, error) {
	export, ok := exporters[opts.Format]
	if !ok {
		return "", engine.Errorf(engine.KindUnsupported, "export format '%s' is not supported", opts.Format)
	}
	if opts.Model == "" {
		opts.Model = engine.ModelAll
	}
	if opts.SQLServerType == "" {
		opts.SQLServerType = engine.SQLServerTypeAuto
	}

	models, err := s.selectModels(opts.Model)
	if err != nil {
		return "", err
	}
	if NeedsSingleModel(opts.Format) && len(models) != 1 {
		if len(models) == 0 {
			return "", engine.Errorf(engine.KindInvalidArgument, "no models defined in the data contract")
		}
		return "", engine.Errorf(engine.KindInvalidArgument,
			"export format '%s' needs a single model, select one with model=... (one of: %s)",
			opts.Format, strings.Join(s.contract.ModelNames(), ", "))
	}

	out, err := export(&exportRequest{contract: s.contract, models: models, opts: opts, session: s})
	if err != nil {
		return "", err
	}
	s.engine.log.DebugContext(ctx, "data contract exported",
		"format", string(opts.Format),
		"model", opts.Model,
		"bytes", len(out))
	return out, nil
}

func (s *session) selectModels(name string) ([]namedModel, error) {
	if name == engine.ModelAll {
		models := make([]namedModel, 0, s.contract.Models.Len())
		for n, m := range s.contract.Models.All() {
			models = append(models, namedModel{Name: n, Model: m})
		}
		return models, nil
	}
	m, ok := s.contract.Models.Get(name)
	if !ok {
		return nil, engine.Errorf(engine.KindNotFound, "model '%s' not found in the data contract", name)
	}
	return []namedModel{{Name: name, Model: m}}, nil
}

// dialect resolves the SQL dialect of an export: the explicit
// sql_server_type, else the selected server's type, else the single type
// all servers share.
func (r *exportRequest) dialect() (*Dialect, error) {
	if !strings.EqualFold(r.opts.SQLServerType, engine.SQLServerTypeAuto) {
		return LookupDialect(r.opts.SQLServerType)
	}

	if r.session.opts.Server != "" {
		srv, err := r.session.resolveServer()
		if err != nil {
			return nil, err
		}
		d, ok := dialectForServer(srv.Type)
		if !ok {
			return nil, engine.Errorf(engine.KindUnsupported,
				"server '%s' of type '%s' has no SQL dialect, set sql_server_type", srv.Name, srv.Type)
		}
		return d, nil
	}

	var found []string
	for name, srv := range r.contract.Servers.All() {
		d, ok := dialectForServer(srv.Type)
		if !ok {
			return nil, engine.Errorf(engine.KindUnsupported,
				"server '%s' of type '%s' has no SQL dialect, set sql_server_type", name, srv.Type)
		}
		if !slices.Contains(found, d.Name) {
			found = append(found, d.Name)
		}
	}
	switch len(found) {
	case 0:
		return nil, engine.Errorf(engine.KindInvalidArgument,
			"cannot infer sql server type: no servers defined, set sql_server_type")
	case 1:
		return dialects[found[0]], nil
	default:
		return nil, engine.Errorf(engine.KindInvalidArgument,
			"cannot infer sql server type: servers use different types (%s), set sql_server_type or server",
			strings.Join(found, ", "))
	}
}

// header is the comment block SQL exports start with.
func (r *exportRequest) header(d *Dialect) string {
	var b strings.Builder
	b.WriteString("-- Data Contract: " + r.contract.ID + "\n")
	b.WriteString("-- SQL Dialect: " + d.Name + "\n")
	return b.String()
}
