// Package config loads contractd's runtime configuration.
//
// Values come from built-in defaults, an optional YAML file, environment
// variables prefixed with DATACONTRACT_CLI_ (nested keys join with "_", so
// server.addr is DATACONTRACT_CLI_SERVER_ADDR), and command line flags.
//
// Example file:
//
//	api_key: s3cret
//	server:
//	  addr: ":4242"
//	  max_body_bytes: 10485760
//	log:
//	  level: debug
//	  format: json
//	ratelimit:
//	  enabled: true
//	  rps: 5
//	  burst: 10
package config
