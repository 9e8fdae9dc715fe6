// Package config loads and validates application configuration.
//
// Configuration is layered: built-in defaults, then one or more JSON
// files merged in order, then SMARTHOME_* environment variable
// overrides. Duration fields accept Go duration strings ("60s", "2m")
// and bucket TTLs additionally accept day suffixes ("14d").
package config
