// Package api serves the contract operations over HTTP.
//
// # Endpoints
//
//	POST /test            run the contract's checks (API key gated)
//	POST /lint            lint the contract
//	POST /export          export the contract to another format
//	GET  /health          liveness
//	GET  /openapi.json    OpenAPI 3 description of the above
//	GET  /metrics         Prometheus metrics, when enabled
//
// Each contract request is answered by exactly one engine call. The flow is
// API key gate (only /test), request binding against the OpenAPI document
// (422 on shape errors), the engine call, then mapping of the result or
// engine error to a response.
package api
