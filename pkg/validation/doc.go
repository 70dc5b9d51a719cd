// Package validation checks HTTP requests against an OpenAPI 3 document and
// reports shape problems as a list of FieldErrors.
//
// Errors follow the layout of a 422 "detail" entry: a location such as
// ["query", "format"], a message, and a machine-readable type.
package validation
