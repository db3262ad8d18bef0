// Package config provides configuration management for the Chryso Forms
// retention service.
//
// Configuration is read from a YAML file, completed with defaults, then
// optionally overridden from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("chryso.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CHRYSO_SECTION_FIELD.
// For example:
//
//   - CHRYSO_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CHRYSO_STORAGE_RECORDS_DSN overrides storage.records.dsn
//   - CHRYSO_RETENTION_MAX_CONCURRENT overrides retention.max_concurrent
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Validation collects every problem into a ValidationError whose Errors
// name the offending fields by their YAML path.
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8090"
//	auth:
//	  enabled: true
//	  # jwt_secret comes from CHRYSO_AUTH_JWT_SECRET
//	storage:
//	  policies:
//	    backend: sqlite
//	    sqlite:
//	      path: /var/lib/chryso/retention.db
//	  records:
//	    backend: postgres
//	    dsn: postgres://chryso@db/forms
//	retention:
//	  tick_schedule: "0 * * * *"
//	  max_concurrent: 4
//	  lease_ttl: 1h
//	notify:
//	  backend: nats
//	  nats_url: nats://nats:4222
package config
