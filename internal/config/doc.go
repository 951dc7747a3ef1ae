// Package config handles configuration loading for flow-gateway.
//
// Configuration is loaded from a YAML file with ${VAR_NAME} environment
// variable expansion. Duration fields use Go's time.ParseDuration syntax:
//
//	sessions:
//	  retry_delay: "10s"
//	flows:
//	  refresh_interval: "30s"
//
// Load() applies defaults for everything optional and validates the rest.
package config
