package api

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/contractd/contractd/pkg/engine"
)

// Query parameter names.
const (
	paramServer        = "server"
	paramSchema        = "schema"
	paramFormat        = "format"
	paramModel         = "model"
	paramRDFBase       = "rdf_base"
	paramSQLServerType = "sql_server_type"
)

const apiKeySchemeName = "api_key"

// documentMediaTypes are the body media types advertised for contract
// documents. Bodies are accepted whatever their declared Content-Type.
var documentMediaTypes = []string{"application/yaml", "text/plain"}

// NewOpenAPIDocument describes the HTTP surface. The export format enum is
// taken from formats.
func NewOpenAPIDocument(version string, formats []engine.ExportFormat) *openapi3.T {
	formatValues := make([]any, 0, len(formats))
	for _, f := range formats {
		formatValues = append(formatValues, string(f))
	}

	testOp := newDocumentOperation("test", "Run the contract's checks against its data",
		"Runs schema and quality checks for the selected server and returns the run result.")
	testOp.AddParameter(queryParam(paramServer, "Server name; defaults to the contract's only server.", openapi3.NewStringSchema()))
	testOp.Security = &openapi3.SecurityRequirements{openapi3.NewSecurityRequirement().Authenticate(apiKeySchemeName)}
	testOp.AddResponse(200, jsonResponse("Run result."))
	testOp.AddResponse(401, jsonResponse("API key missing."))
	testOp.AddResponse(403, jsonResponse("API key not correct."))

	lintOp := newDocumentOperation("lint", "Lint the contract",
		"Validates the contract against a JSON Schema and applies the built-in linters.")
	lintOp.AddParameter(queryParam(paramSchema, "http(s) URL of the JSON Schema to lint against.", openapi3.NewStringSchema()))
	lintOp.AddResponse(200, jsonResponse("Lint result with exactly result and checks."))

	exportOp := newDocumentOperation("export", "Export the contract to another format",
		"Converts the contract into the requested format and returns it as text.")
	exportOp.AddParameter(queryParam(paramFormat, "Target format.", openapi3.NewStringSchema().WithEnum(formatValues...)).WithRequired(true))
	exportOp.AddParameter(queryParam(paramServer, "Server name, for formats that depend on a server.", openapi3.NewStringSchema()))
	exportOp.AddParameter(queryParam(paramModel, "Model key, or all.", openapi3.NewStringSchema().WithDefault(engine.ModelAll)))
	exportOp.AddParameter(queryParam(paramRDFBase, "Base URI for the rdf format.", openapi3.NewStringSchema()))
	exportOp.AddParameter(queryParam(paramSQLServerType, "SQL dialect for sql formats, or auto.", openapi3.NewStringSchema().WithDefault(engine.SQLServerTypeAuto)))
	exportOp.AddResponse(200, openapi3.NewResponse().
		WithDescription("Exported document.").
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"})))

	components := openapi3.NewComponents()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		apiKeySchemeName: &openapi3.SecuritySchemeRef{Value: openapi3.NewSecurityScheme().
			WithType("apiKey").
			WithIn("header").
			WithName(APIKeyHeader).
			WithDescription("Required on /test when the server has an API key configured.")},
	}

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "contractd",
			Description: "Test, lint and export data contracts over HTTP.",
			Version:     version,
		},
		Components: &components,
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/test", &openapi3.PathItem{Post: testOp}),
			openapi3.WithPath("/lint", &openapi3.PathItem{Post: lintOp}),
			openapi3.WithPath("/export", &openapi3.PathItem{Post: exportOp}),
		),
	}
}

func newDocumentOperation(id, summary, description string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Description = description
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithDescription("Data contract document (YAML).").
		WithRequired(true).
		WithSchema(openapi3.NewStringSchema().WithMinLength(1), documentMediaTypes)}
	op.AddResponse(400, jsonResponse("The engine rejected the document or an argument."))
	op.AddResponse(404, jsonResponse("A selected server or model does not exist."))
	op.AddResponse(422, jsonResponse("The request does not have the expected shape."))
	return op
}

func queryParam(name, description string, schema *openapi3.Schema) *openapi3.Parameter {
	return openapi3.NewQueryParameter(name).WithDescription(description).WithSchema(schema)
}

func jsonResponse(description string) *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription(description).
		WithJSONSchema(openapi3.NewObjectSchema())
}
