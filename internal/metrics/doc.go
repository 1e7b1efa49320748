// Package metrics exposes Prometheus collectors for the gateway.
//
// Collectors are registered with the default registry via promauto and
// served by the /metrics endpoint when metrics are enabled in config.
package metrics
