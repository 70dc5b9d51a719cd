// Package metrics exposes contractd's Prometheus collectors.
//
// Collected series:
//
//   - contractd_http_requests_total (route, method, status)
//   - contractd_http_request_duration_seconds (route, method)
//   - contractd_engine_calls_total (operation, outcome)
//   - contractd_engine_call_duration_seconds (operation)
//   - contractd_auth_decisions_total (decision)
//   - contractd_request_validation_failures_total (route)
//
// Go runtime and process collectors are registered alongside them.
package metrics
