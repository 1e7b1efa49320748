// Package config loads and validates helplane-gateway configuration.
//
// Configuration is a YAML file with environment variable expansion:
//
//	server:
//	  http_addr: ":8080"
//	  allowed_origins:
//	    - "https://support.example.com"
//
//	database:
//	  path: /var/lib/helplane/gateway.db
//
//	auth:
//	  jwt_secret: ${HELPLANE_JWT_SECRET}
//	  token_ttl: 24h
//
//	session:
//	  store_timeout: 5s
//	  flush_on_shutdown: true
//
//	logging:
//	  level: info
//	  format: text
//
//	metrics:
//	  enabled: true
//	  path: /metrics
//
// ${VAR_NAME} patterns anywhere in the file are replaced with the value of
// the corresponding environment variable before parsing. Durations are
// written as Go duration strings ("5s", "24h") and parsed at load time.
package config
