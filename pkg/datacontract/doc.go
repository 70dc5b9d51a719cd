// Package datacontract is the in-process data contract engine behind the
// HTTP service. It implements engine.Engine.
//
// A document is parsed once per Open. Models, fields and servers keep the
// order they have in the document, and field $refs to the document's own
// definitions are resolved while parsing.
//
// Test connects to one server through a Source and runs schema checks
// (presence, type, required, unique, length, range and enum) and the SQL
// quality checks of every model. File servers (local, s3, gcs, azure) are
// read through DuckDB. Credentials come from DATACONTRACT_<TYPE>_* variables.
//
// Lint validates the document against the built-in JSON schema, or one
// fetched from an http(s) location, and then runs the contract linters.
//
// Export renders the contract as jsonschema, sql, sql-query, rdf, avro,
// protobuf, dbt, go or markdown.
package datacontract
