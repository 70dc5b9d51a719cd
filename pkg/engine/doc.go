// Package engine defines the capability interface the HTTP service uses to
// reach a data-contract engine.
//
// # Architecture
//
//	┌───────────────────────────────────────────────┐
//	│                 contractd                      │
//	├───────────────────────────────────────────────┤
//	│                                                │
//	│   pkg/api   (HTTP façade, :4242)               │
//	│      │                                         │
//	│      │ engine.Engine / engine.Session          │
//	│      ▼                                         │
//	│   pkg/datacontract (in-process engine)         │
//	│      │                                         │
//	│      ▼                                         │
//	│   data sources (postgres, duckdb, ...)         │
//	│                                                │
//	└───────────────────────────────────────────────┘
//
// The façade never looks inside a document. It opens a Session for the
// document it received, calls exactly one operation on it, and maps the
// outcome to an HTTP response. Engines report failures with *Error, whose
// Kind selects the response status.
package engine
