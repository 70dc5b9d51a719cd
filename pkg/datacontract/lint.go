package datacontract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/contractd/contractd/pkg/engine"
)

//go:embed schema/datacontract.schema.json
var embeddedSchema []byte

const (
	embeddedSchemaURL = "https://datacontract.com/datacontract.schema.json"

	// maxSchemaBytes caps the size of a fetched schema.
	maxSchemaBytes = 4 << 20

	// maxSchemaErrors caps the validation errors reported in one check.
	maxSchemaErrors = 20
)

const checkEngine = "datacontract"

// schemaCache holds the compiled built-in schema.
type schemaCache struct {
	once     sync.Once
	embedded *jsonschema.Schema
	err      error
}

func newSchemaCache() *schemaCache {
	return &schemaCache{}
}

func (c *schemaCache) builtin() (*jsonschema.Schema, error) {
	c.once.Do(func() {
		c.embedded, c.err = compileSchema(embeddedSchemaURL, embeddedSchema)
	})
	return c.embedded, c.err
}

func compileSchema(location string, data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.LoadURL = func(s string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("loading %s: external schema references are not supported", s)
	}
	if err := compiler.AddResource(location, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(location)
}

// Lint implements engine.Session.
func (s *session) Lint(ctx context.Context) (*engine.LintResult, error) {
	schema, err := s.lintSchema(ctx)
	if err != nil {
		return nil, err
	}

	syntax := engine.Check{
		Type:   "lint",
		Name:   "Data contract is syntactically valid",
		Engine: checkEngine,
		Result: engine.ResultPassed,
	}
	if problems := validateDocument(schema, s.document); len(problems) > 0 {
		syntax.Result = engine.ResultFailed
		syntax.Reason = strings.Join(problems, "; ")
		return engine.NewLintResult([]engine.Check{syntax}), nil
	}

	checks := []engine.Check{syntax}
	for _, l := range linters {
		checks = append(checks, l.run(s.contract))
	}
	return engine.NewLintResult(checks), nil
}

// lintSchema returns the built-in schema or the one at the session's
// schema location.
func (s *session) lintSchema(ctx context.Context) (*jsonschema.Schema, error) {
	location := s.opts.SchemaLocation
	if location == "" {
		schema, err := s.engine.schemas.builtin()
		if err != nil {
			return nil, engine.Wrap(engine.KindInternal, err, "built-in data contract schema does not compile")
		}
		return schema, nil
	}

	u, err := url.Parse(location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, engine.Errorf(engine.KindInvalidArgument, "schema location '%s' must be an http or https URL", location)
	}

	data, err := s.engine.fetchSchema(ctx, location)
	if err != nil {
		return nil, err
	}
	schema, err := compileSchema(location, data)
	if err != nil {
		return nil, engine.Wrap(engine.KindInvalidArgument, err, "'%s' is not a valid JSON schema", location)
	}
	return schema, nil
}

func (e *Engine) fetchSchema(ctx context.Context, location string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.schemaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, engine.Wrap(engine.KindInvalidArgument, err, "schema location '%s' is not a valid URL", location)
	}
	req.Header.Set("Accept", "application/schema+json, application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, engine.Wrap(engine.KindUnavailable, err, "cannot fetch schema from '%s'", location)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, engine.Errorf(engine.KindUnavailable, "cannot fetch schema from '%s': status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaBytes+1))
	if err != nil {
		return nil, engine.Wrap(engine.KindUnavailable, err, "cannot read schema from '%s'", location)
	}
	if len(data) > maxSchemaBytes {
		return nil, engine.Errorf(engine.KindInvalidArgument, "schema at '%s' is larger than %d bytes", location, maxSchemaBytes)
	}
	e.log.DebugContext(ctx, "lint schema fetched", "location", location, "bytes", len(data))
	return data, nil
}

// validateDocument validates the raw document against schema and returns
// one message per violation, sorted by location.
func validateDocument(schema *jsonschema.Schema, document string) []string {
	instance, err := documentInstance(document)
	if err != nil {
		return []string{err.Error()}
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	var problems []string
	collectSchemaErrors(ve, &problems)
	sort.Strings(problems)
	if len(problems) > maxSchemaErrors {
		more := len(problems) - maxSchemaErrors
		problems = append(problems[:maxSchemaErrors], fmt.Sprintf("and %d more", more))
	}
	return problems
}

func collectSchemaErrors(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, out)
	}
}

// documentInstance converts the YAML document to the JSON value model the
// validator expects.
func documentInstance(document string) (any, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(document), &raw); err != nil {
		return nil, fmt.Errorf("cannot parse data contract: %w", err)
	}
	data, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("data contract is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, fmt.Errorf("data contract is not representable as JSON: %w", err)
	}
	return instance, nil
}

// normalizeYAML turns mappings with non-string keys into string-keyed maps.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	default:
		return v
	}
}
