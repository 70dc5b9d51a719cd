package datacontract

import (
	"context"
	"fmt"
	"strings"

	"github.com/contractd/contractd/pkg/engine"
)

// Test implements engine.Session. It connects to the resolved server and
// runs the schema and quality checks of every model in document order.
func (s *session) Test(ctx context.Context) (*engine.RunResult, error) {
	srv, err := s.resolveServer()
	if err != nil {
		return nil, err
	}
	open, ok := s.engine.sources[strings.ToLower(srv.Type)]
	if !ok {
		return nil, engine.Errorf(engine.KindUnsupported, "testing servers of type '%s' is not supported", srv.Type)
	}

	e := s.engine
	start := e.now().UTC()
	r := &runner{engine: e}
	r.logf("info", "Running tests for data contract %s with server %s", s.contract.ID, srv.Name)

	src, err := open(ctx, SourceConfig{
		ServerName: srv.Name,
		Server:     srv.Server,
		Models:     s.contract.ModelNames(),
		Getenv:     e.getenv,
	})
	if err != nil {
		if _, ok := engine.AsError(err); !ok {
			err = engine.Wrap(engine.KindUnavailable, err, "cannot connect to %s server '%s'", srv.Type, srv.Name)
		}
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			e.log.WarnContext(ctx, "closing data source", "server", srv.Name, "error", err)
		}
	}()
	r.src = src

	for name, model := range s.contract.Models.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.checkModel(ctx, namedModel{Name: name, Model: model})
	}

	end := e.now().UTC()
	result := &engine.RunResult{
		RunID:               e.newRunID(),
		DataContractID:      s.contract.ID,
		DataContractVersion: s.contract.Info.Version,
		Server:              srv.Name,
		TimestampStart:      &start,
		TimestampEnd:        &end,
		Checks:              r.checks,
	}
	result.Finish()
	r.logf("info", "Finished tests for data contract %s: %s", s.contract.ID, result.Result)
	result.Logs = r.logs

	e.log.InfoContext(ctx, "data contract tested",
		"id", s.contract.ID,
		"server", srv.Name,
		"result", string(result.Result),
		"checks", len(result.Checks))
	return result, nil
}

type runner struct {
	engine *Engine
	src    Source
	checks []engine.Check
	logs   []engine.Log
}

func (r *runner) logf(level, format string, args ...any) {
	r.logs = append(r.logs, engine.Log{
		Timestamp: r.engine.now().UTC(),
		Level:     strings.ToUpper(level),
		Message:   fmt.Sprintf(format, args...),
	})
}

func (r *runner) add(c engine.Check) {
	r.checks = append(r.checks, c)
}

func newCheck(typ, category, model, field, name string) engine.Check {
	key := model + "__" + typ
	if field != "" {
		key = model + "__" + field + "__" + typ
	}
	return engine.Check{
		Key:      key,
		Category: category,
		Type:     typ,
		Name:     name,
		Model:    model,
		Field:    field,
		Engine:   checkEngine,
		Result:   engine.ResultPassed,
	}
}

func (r *runner) checkModel(ctx context.Context, m namedModel) {
	d := r.src.Dialect()

	present := newCheck("model_is_present", "schema", m.Name, "", fmt.Sprintf("Check that model '%s' is present", m.Name))
	qctx, cancel := context.WithTimeout(ctx, r.engine.queryTimeout)
	cols, err := r.src.Columns(qctx, m.Name)
	cancel()
	if err != nil {
		present.Result = engine.ResultError
		present.Reason = err.Error()
		r.add(present)
		r.logf("warn", "Model %s cannot be read: %v", m.Name, err)
		return
	}
	r.add(present)

	table := d.Quote(m.Name)
	for name, f := range m.Fields.All() {
		r.checkField(ctx, m.Name, table, name, f, cols)
	}
	for i := range m.Quality {
		r.checkQuality(ctx, m.Name, "", i, &m.Quality[i])
	}
}

func (r *runner) checkField(ctx context.Context, model, table, name string, f *Field, cols map[string]string) {
	d := r.src.Dialect()
	col := d.Quote(name)

	present := newCheck("field_is_present", "schema", model, name, fmt.Sprintf("Check that field '%s' is present", name))
	dbType, ok := cols[strings.ToLower(name)]
	if !ok {
		present.Result = engine.ResultFailed
		present.Reason = fmt.Sprintf("Field '%s' is not present in '%s'", name, model)
		r.add(present)
		return
	}
	r.add(present)

	if f.Type != "" {
		c := newCheck("field_type", "schema", model, name, fmt.Sprintf("Check that field '%s' has type '%s'", name, f.Type))
		c.Details = map[string]any{"expected": f.Type, "actual": dbType}
		if !typesCompatible(f.Type, dbType) {
			c.Result = engine.ResultFailed
			c.Reason = fmt.Sprintf("Type mismatch, expected '%s', got '%s'", f.Type, dbType)
		}
		r.add(c)
	}

	if f.Required || f.PrimaryKey {
		r.countCheck(ctx, newCheck("field_required", "schema", model, name, fmt.Sprintf("Check that field '%s' has no missing values", name)),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", table, col), "missing values")
	}
	if f.Unique || f.PrimaryKey {
		r.countCheck(ctx, newCheck("field_unique", "schema", model, name, fmt.Sprintf("Check that field '%s' has no duplicate values", name)),
			fmt.Sprintf("SELECT COUNT(%s) - COUNT(DISTINCT %s) FROM %s", col, col, table), "duplicate values")
	}
	if f.MinLength != nil {
		r.countCheck(ctx, newCheck("field_min_length", "quality", model, name, fmt.Sprintf("Check that field '%s' has a min length of %d", name, *f.MinLength)),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < %d", table, d.Length(col), *f.MinLength), "values shorter than the min length")
	}
	if f.MaxLength != nil {
		r.countCheck(ctx, newCheck("field_max_length", "quality", model, name, fmt.Sprintf("Check that field '%s' has a max length of %d", name, *f.MaxLength)),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > %d", table, d.Length(col), *f.MaxLength), "values longer than the max length")
	}
	if f.Minimum != nil {
		r.countCheck(ctx, newCheck("field_minimum", "quality", model, name, fmt.Sprintf("Check that field '%s' has a minimum of %s", name, formatNumber(*f.Minimum))),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < %s", table, col, formatNumber(*f.Minimum)), "values below the minimum")
	}
	if f.Maximum != nil {
		r.countCheck(ctx, newCheck("field_maximum", "quality", model, name, fmt.Sprintf("Check that field '%s' has a maximum of %s", name, formatNumber(*f.Maximum))),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > %s", table, col, formatNumber(*f.Maximum)), "values above the maximum")
	}
	if f.ExclusiveMinimum != nil {
		r.countCheck(ctx, newCheck("field_exclusive_minimum", "quality", model, name, fmt.Sprintf("Check that field '%s' is greater than %s", name, formatNumber(*f.ExclusiveMinimum))),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s <= %s", table, col, formatNumber(*f.ExclusiveMinimum)), "values not above the exclusive minimum")
	}
	if f.ExclusiveMaximum != nil {
		r.countCheck(ctx, newCheck("field_exclusive_maximum", "quality", model, name, fmt.Sprintf("Check that field '%s' is less than %s", name, formatNumber(*f.ExclusiveMaximum))),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s >= %s", table, col, formatNumber(*f.ExclusiveMaximum)), "values not below the exclusive maximum")
	}
	if len(f.Enum) > 0 {
		literals := make([]string, len(f.Enum))
		for i, v := range f.Enum {
			literals[i] = d.Literal(v)
		}
		r.countCheck(ctx, newCheck("field_enum", "quality", model, name, fmt.Sprintf("Check that field '%s' only contains enum values", name)),
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s NOT IN (%s)", table, col, col, strings.Join(literals, ", ")),
			"values outside the enum")
	}

	for i := range f.Quality {
		r.checkQuality(ctx, model, name, i, &f.Quality[i])
	}
}

// countCheck runs a query counting offending rows; zero passes.
func (r *runner) countCheck(ctx context.Context, c engine.Check, query, what string) {
	c.Language = "sql"
	c.Implementation = query
	n, err := r.queryNumber(ctx, query)
	switch {
	case err != nil:
		c.Result = engine.ResultError
		c.Reason = err.Error()
	case n != 0:
		c.Result = engine.ResultFailed
		c.Reason = fmt.Sprintf("%s %s", formatNumber(n), what)
		c.Details = map[string]any{"count": n}
	}
	r.add(c)
}

func (r *runner) queryNumber(ctx context.Context, query string) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, r.engine.queryTimeout)
	defer cancel()
	return r.src.QueryNumber(qctx, query)
}

func (r *runner) checkQuality(ctx context.Context, model, field string, index int, q *Quality) {
	name := q.Name
	if name == "" {
		name = q.Description
	}
	if name == "" {
		name = fmt.Sprintf("Quality check %d", index+1)
	}
	c := newCheck("quality", "quality", model, field, name)
	c.Key = fmt.Sprintf("%s__quality_%d", strings.TrimSuffix(c.Key, "__quality"), index+1)

	switch strings.ToLower(q.Type) {
	case "text":
		c.Result = engine.ResultInfo
		c.Reason = strings.TrimSpace(q.Description)
	case "sql":
		query := renderQuery(q.Query, model, field)
		c.Language = "sql"
		c.Implementation = query
		if err := guardQuery(query); err != nil {
			c.Result = engine.ResultError
			c.Reason = err.Error()
			break
		}
		v, err := r.queryNumber(ctx, query)
		if err != nil {
			c.Result = engine.ResultError
			c.Reason = err.Error()
			break
		}
		c.Details = map[string]any{"value": v}
		if failed := q.evaluate(v); len(failed) > 0 {
			c.Result = engine.ResultFailed
			c.Reason = strings.Join(failed, "; ")
		}
	default:
		c.Result = engine.ResultWarning
		c.Reason = fmt.Sprintf("quality type '%s' is not executed", q.Type)
	}
	r.add(c)
}
